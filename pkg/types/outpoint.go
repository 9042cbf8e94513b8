package types

import (
	"encoding/binary"
	"fmt"
)

// Outpoint references a specific output in a transaction.
// TxID is the hex transaction id exactly as the node reports it.
type Outpoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// String returns "txid:vout".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

// AppendKey appends the storage encoding of the outpoint: txid bytes
// followed by the big-endian output index.
func (o Outpoint) AppendKey(dst []byte) []byte {
	dst = append(dst, o.TxID...)
	return binary.BigEndian.AppendUint32(dst, o.Vout)
}
