// Package block defines the block and transaction shapes returned by the
// node (getblock verbosity 2) and validates them at the ingestion boundary.
package block

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// Block is a block as reported by the node.
type Block struct {
	Hash              string        `json:"hash"`
	Height            int64         `json:"height"`
	Confirmations     int64         `json:"confirmations,omitempty"`
	Time              int64         `json:"time,omitempty"`
	PreviousBlockHash string        `json:"previousblockhash,omitempty"`
	Tx                []Transaction `json:"tx"`
}

// Transaction is a decoded transaction inside a block.
type Transaction struct {
	TxID string   `json:"txid"`
	Vin  []Input  `json:"vin"`
	Vout []Output `json:"vout"`
}

// Input spends a previous output, or is the coinbase input.
type Input struct {
	TxID     string `json:"txid,omitempty"`
	Vout     uint32 `json:"vout"`
	Coinbase string `json:"coinbase,omitempty"`
}

// IsCoinbase reports whether the input is a block-reward input with no
// previous output.
func (in Input) IsCoinbase() bool {
	return in.Coinbase != ""
}

// Output is a transaction output. Value is in whole coins.
type Output struct {
	Value        float64      `json:"value"`
	N            uint32       `json:"n"`
	ScriptPubKey ScriptPubKey `json:"scriptPubKey"`
}

// Amount converts Value to the smallest currency unit, rounding to the
// nearest unit. This is the only place a float value becomes an integer.
func (o Output) Amount() (btcutil.Amount, error) {
	amt, err := btcutil.NewAmount(o.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: output %d value %v: %v", ErrBadValue, o.N, o.Value, err)
	}
	if amt < 0 {
		return 0, fmt.Errorf("%w: output %d value %v is negative", ErrBadValue, o.N, o.Value)
	}
	return amt, nil
}

// ScriptPubKey is an output's locking script. Older nodes report the
// resolved addresses as a list, newer ones as a single address.
type ScriptPubKey struct {
	Hex       string   `json:"hex"`
	Type      string   `json:"type,omitempty"`
	Address   string   `json:"address,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// FirstAddress returns the first resolvable address, or "" if the script
// carries none.
func (s ScriptPubKey) FirstAddress() string {
	for _, a := range s.Addresses {
		if a != "" {
			return a
		}
	}
	return s.Address
}
