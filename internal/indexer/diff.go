package indexer

import (
	"fmt"

	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/pkg/block"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
)

// Diff is the effect of one block on the UTXO set.
type Diff struct {
	Additions []*utxo.UTXO
	Deletions []types.Outpoint
}

// ComputeDiff derives the outputs a block creates and the outpoints its
// inputs spend. It has no side effects: the same block always yields the
// same diff. Coinbase inputs spend nothing.
func ComputeDiff(b *block.Block) (*Diff, error) {
	d := &Diff{}
	for _, tx := range b.Tx {
		for _, out := range tx.Vout {
			amt, err := out.Amount()
			if err != nil {
				return nil, fmt.Errorf("tx %s: %w", tx.TxID, err)
			}
			d.Additions = append(d.Additions, &utxo.UTXO{
				TxID:        tx.TxID,
				Vout:        out.N,
				Address:     out.ScriptPubKey.FirstAddress(),
				Amount:      int64(amt),
				Script:      out.ScriptPubKey.Hex,
				BlockHeight: b.Height,
				BlockHash:   b.Hash,
			})
		}
		for _, in := range tx.Vin {
			if in.IsCoinbase() {
				continue
			}
			d.Deletions = append(d.Deletions, types.Outpoint{TxID: in.TxID, Vout: in.Vout})
		}
	}
	return d, nil
}

// Apply stages the diff on w. Additions go first so an output created and
// spent within the same block ends up deleted.
func (d *Diff) Apply(w *utxo.Writer) error {
	for _, u := range d.Additions {
		if err := w.Upsert(u); err != nil {
			return err
		}
	}
	for _, op := range d.Deletions {
		if err := w.Delete(op); err != nil {
			return err
		}
	}
	return nil
}
