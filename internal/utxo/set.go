// Package utxo manages the UTXO set and the indexing cursor.
package utxo

import "github.com/Klingon-tech/utxo-indexer/pkg/types"

// UTXO represents an unspent transaction output.
type UTXO struct {
	TxID        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	Address     string `json:"address"`
	Amount      int64  `json:"amount"`
	Script      string `json:"script"`
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
}

// Outpoint returns the (txid, vout) key of the output.
func (u *UTXO) Outpoint() types.Outpoint {
	return types.Outpoint{TxID: u.TxID, Vout: u.Vout}
}

// Reader is the read-only view of the UTXO set used by query paths.
type Reader interface {
	Get(op types.Outpoint) (*UTXO, error)
	ScanByAddress(address string) ([]*UTXO, error)
	SumByAddress(address string) (int64, error)
	ForEach(fn func(*UTXO) error) error
}
