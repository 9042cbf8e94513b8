package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/utxo-indexer/internal/storage"
	"github.com/Klingon-tech/utxo-indexer/internal/utxo"
)

func testService(t *testing.T, utxos ...*utxo.UTXO) *Service {
	t.Helper()
	store := utxo.NewStore(storage.NewMemory())
	require.NoError(t, store.UpsertMany(utxos))
	return NewService(store, func() int64 { return 42 })
}

func addrUTXO(tx string, vout uint32, addr string, amount int64) *utxo.UTXO {
	return &utxo.UTXO{TxID: strings.Repeat(tx, 64), Vout: vout, Address: addr, Amount: amount}
}

func TestService_BalanceMatchesUtxos(t *testing.T) {
	s := testService(t,
		addrUTXO("a", 0, "A", 70),
		addrUTXO("b", 0, "A", 10),
		addrUTXO("c", 1, "A", 20),
		addrUTXO("d", 0, "B", 999),
	)

	utxos, err := s.GetUtxos("A")
	require.NoError(t, err)
	var sum int64
	for _, u := range utxos {
		sum += u.Amount
	}

	bal, err := s.GetBalance("A")
	require.NoError(t, err)
	assert.Equal(t, sum, bal)
	assert.Equal(t, int64(100), bal)

	detail, err := s.GetBalanceDetail("A")
	require.NoError(t, err)
	assert.Equal(t, &Balance{Address: "A", Balance: 100, UTXOCount: 3, Height: 42}, detail)
}

func TestService_UnknownAddress(t *testing.T) {
	s := testService(t)

	utxos, err := s.GetUtxos("nobody")
	require.NoError(t, err)
	assert.NotNil(t, utxos)
	assert.Empty(t, utxos)

	bal, err := s.GetBalance("nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)

	sel, err := s.SelectCoins("nobody", 1)
	require.NoError(t, err)
	assert.True(t, sel.Insufficient)
}

func TestService_SelectCoins(t *testing.T) {
	s := testService(t,
		addrUTXO("a", 0, "A", 70),
		addrUTXO("b", 0, "A", 10),
		addrUTXO("c", 0, "A", 20),
	)

	sel, err := s.SelectCoins("A", 25)
	require.NoError(t, err)
	require.False(t, sel.Insufficient)
	require.Len(t, sel.Inputs, 2)
	assert.Equal(t, int64(10), sel.Inputs[0].Amount)
	assert.Equal(t, int64(20), sel.Inputs[1].Amount)

	_, err = s.SelectCoins("A", 0)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestService_Height(t *testing.T) {
	assert.Equal(t, int64(42), testService(t).Height())
}
