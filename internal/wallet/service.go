// Package wallet answers address queries against the UTXO set: balances,
// UTXO listings and coin selection. It never mutates the set.
package wallet

import (
	"fmt"

	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
)

// HeightFunc reports the last indexed height.
type HeightFunc func() int64

// Service is the read-only query layer over the UTXO set.
type Service struct {
	utxos  utxo.Reader
	height HeightFunc
}

// NewService creates a query service.
func NewService(utxos utxo.Reader, height HeightFunc) *Service {
	return &Service{utxos: utxos, height: height}
}

// Height returns the last indexed height.
func (s *Service) Height() int64 {
	return s.height()
}

// GetUtxos returns the address's UTXOs ascending by amount. An unknown
// address yields an empty list.
func (s *Service) GetUtxos(address string) ([]*utxo.UTXO, error) {
	utxos, err := s.utxos.ScanByAddress(address)
	if err != nil {
		return nil, fmt.Errorf("get utxos: %w", err)
	}
	if utxos == nil {
		utxos = []*utxo.UTXO{}
	}
	return utxos, nil
}

// GetBalance returns the address's total amount. An unknown address has a
// zero balance.
func (s *Service) GetBalance(address string) (int64, error) {
	bal, err := s.utxos.SumByAddress(address)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// GetBalanceDetail returns balance and UTXO count from one scan, so both
// describe the same snapshot.
func (s *Service) GetBalanceDetail(address string) (*Balance, error) {
	height := s.height()
	utxos, err := s.GetUtxos(address)
	if err != nil {
		return nil, err
	}
	b := &Balance{Address: address, UTXOCount: len(utxos), Height: height}
	for _, u := range utxos {
		b.Balance += u.Amount
	}
	return b, nil
}

// SelectCoins selects inputs from the address's UTXOs to cover target.
func (s *Service) SelectCoins(address string, target int64) (*CoinSelection, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}
	utxos, err := s.GetUtxos(address)
	if err != nil {
		return nil, err
	}
	return SelectCoins(utxos, target)
}
