package wallet

import (
	"errors"
	"sort"

	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
)

// ErrInvalidTarget is returned for a non-positive selection target.
var ErrInvalidTarget = errors.New("target must be positive")

// CoinSelection holds the result of coin selection. When Insufficient is
// set the address cannot cover the target and Inputs is empty.
type CoinSelection struct {
	Inputs       []*utxo.UTXO `json:"inputs"`
	Total        int64        `json:"total"`
	Change       int64        `json:"change"`
	Insufficient bool         `json:"insufficient"`
}

// SelectCoins picks inputs covering target from utxos, which must be
// sorted ascending by amount.
//
// It locates the largest UTXO not above target, then accumulates downward
// from it until the target is covered, returning that contiguous run. If
// even every UTXO up to that point falls short, the smallest UTXO above
// target is returned on its own. If no UTXO is at or below target, the
// smallest UTXO is returned.
func SelectCoins(utxos []*utxo.UTXO, target int64) (*CoinSelection, error) {
	if target <= 0 {
		return nil, ErrInvalidTarget
	}
	if len(utxos) == 0 {
		return &CoinSelection{Inputs: []*utxo.UTXO{}, Insufficient: true}, nil
	}

	closest := sort.Search(len(utxos), func(i int) bool {
		return utxos[i].Amount > target
	}) - 1

	// Every UTXO is larger than target: the smallest alone covers it.
	if closest == -1 {
		return newSelection(utxos[:1], target), nil
	}

	var total int64
	for i := closest; i >= 0; i-- {
		total += utxos[i].Amount
		if total >= target {
			return newSelection(utxos[i:closest+1], target), nil
		}
	}

	if closest+1 < len(utxos) {
		return newSelection(utxos[closest+1:closest+2], target), nil
	}
	return &CoinSelection{Inputs: []*utxo.UTXO{}, Insufficient: true}, nil
}

func newSelection(inputs []*utxo.UTXO, target int64) *CoinSelection {
	sel := &CoinSelection{Inputs: make([]*utxo.UTXO, len(inputs))}
	copy(sel.Inputs, inputs)
	for _, u := range inputs {
		sel.Total += u.Amount
	}
	sel.Change = sel.Total - target
	return sel
}
