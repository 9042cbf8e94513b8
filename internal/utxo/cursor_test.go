package utxo

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/utxo-indexer/internal/storage"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
)

var errTest = errors.New("test failure")

func TestCursor_Unset(t *testing.T) {
	c := NewCursor(storage.NewMemory(), 100)

	h, err := c.Get()
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if h != 99 {
		t.Errorf("Get() = %d, want 99", h)
	}
}

func TestCursor_SetGet(t *testing.T) {
	c := NewCursor(storage.NewMemory(), 0)

	for _, h := range []int64{0, 5, 5, 1_000_000} {
		if err := c.Set(h); err != nil {
			t.Fatalf("Set(%d) error: %v", h, err)
		}
		got, _ := c.Get()
		if got != h {
			t.Errorf("Get() = %d, want %d", got, h)
		}
	}
}

func TestCursor_StoredAsDecimal(t *testing.T) {
	db := storage.NewMemory()
	c := NewCursor(db, 0)
	c.Set(42)

	raw, err := db.Get([]byte("s/last_processed_block"))
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if string(raw) != "42" {
		t.Errorf("stored value = %q, want \"42\"", raw)
	}
}

func TestCursor_CorruptValue(t *testing.T) {
	db := storage.NewMemory()
	db.Put([]byte("s/last_processed_block"), []byte("forty-two"))

	if _, err := NewCursor(db, 0).Get(); err == nil {
		t.Error("Get() should fail on a non-numeric cursor")
	}
}

func TestCursor_StageWithBlock(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)
	c := NewCursor(db, 0)
	u := makeUTXO("a", 0, "addr1", 10)

	err := s.Update(func(w *Writer) error {
		if err := w.Upsert(u); err != nil {
			return err
		}
		return c.Stage(w, 7)
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	h, _ := c.Get()
	if h != 7 {
		t.Errorf("cursor = %d, want 7", h)
	}
	if ok, _ := s.Has(u.Outpoint()); !ok {
		t.Error("utxo staged with the cursor was not written")
	}
}

func TestCursor_StageDiscardedOnError(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)
	c := NewCursor(db, 10)

	err := s.Update(func(w *Writer) error {
		if err := w.Upsert(makeUTXO("a", 0, "addr1", 10)); err != nil {
			return err
		}
		if err := c.Stage(w, 10); err != nil {
			return err
		}
		return errTest
	})
	if !errors.Is(err, errTest) {
		t.Fatalf("Update() error = %v, want errTest", err)
	}

	if h, _ := c.Get(); h != 9 {
		t.Errorf("cursor = %d after failed unit, want 9", h)
	}
	if ok, _ := s.Has(types.Outpoint{TxID: txid("a"), Vout: 0}); ok {
		t.Error("utxo from failed unit was written")
	}
}
