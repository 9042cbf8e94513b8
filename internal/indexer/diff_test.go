package indexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/utxo-indexer/internal/storage"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
	"github.com/Klingon-tech/utxo-indexer/pkg/block"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
)

func h(c string) string { return strings.Repeat(c, 64) }

func out(n uint32, value float64, addr string) block.Output {
	spk := block.ScriptPubKey{Hex: "76a914" + strings.Repeat("ab", 20) + "88ac"}
	if addr != "" {
		spk.Addresses = []string{addr}
	}
	return block.Output{Value: value, N: n, ScriptPubKey: spk}
}

func coinbase(txid string, outs ...block.Output) block.Transaction {
	return block.Transaction{TxID: txid, Vin: []block.Input{{Coinbase: "03aabbcc"}}, Vout: outs}
}

func spend(txid string, ins []types.Outpoint, outs ...block.Output) block.Transaction {
	tx := block.Transaction{TxID: txid, Vout: outs}
	for _, op := range ins {
		tx.Vin = append(tx.Vin, block.Input{TxID: op.TxID, Vout: op.Vout})
	}
	return tx
}

func TestComputeDiff(t *testing.T) {
	b := &block.Block{
		Hash:   h("b"),
		Height: 7,
		Tx: []block.Transaction{
			coinbase(h("1"), out(0, 50, "A")),
			spend(h("2"), []types.Outpoint{{TxID: h("9"), Vout: 3}},
				out(0, 0.3, "B"),
				out(1, 0, "")),
		},
	}

	d, err := ComputeDiff(b)
	require.NoError(t, err)

	require.Len(t, d.Additions, 3)
	assert.Equal(t, &utxo.UTXO{
		TxID:        h("1"),
		Vout:        0,
		Address:     "A",
		Amount:      5_000_000_000,
		Script:      b.Tx[0].Vout[0].ScriptPubKey.Hex,
		BlockHeight: 7,
		BlockHash:   h("b"),
	}, d.Additions[0])
	assert.Equal(t, int64(30_000_000), d.Additions[1].Amount)
	assert.Equal(t, "", d.Additions[2].Address)

	// The coinbase input spends nothing.
	assert.Equal(t, []types.Outpoint{{TxID: h("9"), Vout: 3}}, d.Deletions)
}

func TestComputeDiff_Deterministic(t *testing.T) {
	b := &block.Block{Hash: h("b"), Height: 1, Tx: []block.Transaction{
		coinbase(h("1"), out(0, 1.1, "A"), out(1, 2.2, "B")),
		spend(h("2"), []types.Outpoint{{TxID: h("1"), Vout: 0}}, out(0, 1, "C")),
	}}

	d1, err := ComputeDiff(b)
	require.NoError(t, err)
	d2, err := ComputeDiff(b)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestComputeDiff_BadValue(t *testing.T) {
	b := &block.Block{Hash: h("b"), Height: 1, Tx: []block.Transaction{
		coinbase(h("1"), out(0, -5, "A")),
	}}
	_, err := ComputeDiff(b)
	assert.ErrorIs(t, err, block.ErrBadValue)
}

func TestDiff_ApplyTwiceIsIdempotent(t *testing.T) {
	db := storage.NewMemory()
	store := utxo.NewStore(db)
	require.NoError(t, store.UpsertMany([]*utxo.UTXO{{TxID: h("9"), Vout: 0, Address: "Z", Amount: 10}}))

	b := &block.Block{Hash: h("b"), Height: 1, Tx: []block.Transaction{
		coinbase(h("1"), out(0, 1, "A")),
		spend(h("2"), []types.Outpoint{{TxID: h("9"), Vout: 0}}, out(0, 0.5, "B")),
	}}
	d, err := ComputeDiff(b)
	require.NoError(t, err)

	require.NoError(t, store.Update(d.Apply))
	once, err := utxo.Commitment(store)
	require.NoError(t, err)

	require.NoError(t, store.Update(d.Apply))
	twice, err := utxo.Commitment(store)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	bal, _ := store.SumByAddress("B")
	assert.Equal(t, int64(50_000_000), bal)
}

func TestDiff_SameBlockSpend(t *testing.T) {
	store := utxo.NewStore(storage.NewMemory())
	b := &block.Block{Hash: h("b"), Height: 1, Tx: []block.Transaction{
		coinbase(h("1"), out(0, 1, "A")),
		spend(h("2"), []types.Outpoint{{TxID: h("1"), Vout: 0}}, out(0, 1, "B")),
	}}
	d, err := ComputeDiff(b)
	require.NoError(t, err)
	require.NoError(t, store.Update(d.Apply))

	ok, _ := store.Has(types.Outpoint{TxID: h("1"), Vout: 0})
	assert.False(t, ok, "output spent in its own block must not remain")
	bal, _ := store.SumByAddress("B")
	assert.Equal(t, int64(100_000_000), bal)
}
