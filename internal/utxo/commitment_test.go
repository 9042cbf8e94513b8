package utxo

import (
	"testing"

	"github.com/Klingon-tech/utxo-indexer/internal/storage"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
)

func TestCommitment_Empty(t *testing.T) {
	store := NewStore(storage.NewMemory())

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if !root.IsZero() {
		t.Error("empty store commitment should be zero hash")
	}
}

func TestCommitment_SingleUTXO(t *testing.T) {
	store := NewStore(storage.NewMemory())
	u := makeUTXO("a", 0, "addr1", 1000)
	store.UpsertMany([]*UTXO{u})

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if root != hashUTXO(u) {
		t.Error("single UTXO commitment should equal its leaf hash")
	}
}

func TestCommitment_Deterministic(t *testing.T) {
	// Insert the same outputs in different orders.
	build := func(utxos ...*UTXO) types.Hash {
		s := NewStore(storage.NewMemory())
		for _, u := range utxos {
			s.UpsertMany([]*UTXO{u})
		}
		root, _ := Commitment(s)
		return root
	}

	u1 := makeUTXO("a", 0, "addr1", 1000)
	u2 := makeUTXO("b", 1, "addr2", 2000)
	u3 := makeUTXO("c", 0, "", 0)

	if build(u1, u2, u3) != build(u3, u1, u2) {
		t.Error("commitment should not depend on insert order")
	}
}

func TestCommitment_ChangesOnModification(t *testing.T) {
	store := NewStore(storage.NewMemory())
	u := makeUTXO("a", 0, "addr1", 1000)
	store.UpsertMany([]*UTXO{u})
	root1, _ := Commitment(store)

	store.UpsertMany([]*UTXO{makeUTXO("b", 0, "addr1", 1)})
	root2, _ := Commitment(store)
	if root1 == root2 {
		t.Error("commitment should change after adding a UTXO")
	}

	store.DeleteMany([]types.Outpoint{{TxID: txid("b"), Vout: 0}})
	root3, _ := Commitment(store)
	if root3 != root1 {
		t.Error("commitment should return to the original after the delete")
	}
}

func TestHashUTXO_FieldsMatter(t *testing.T) {
	base := makeUTXO("a", 0, "addr1", 1000)
	h := hashUTXO(base)

	mutations := map[string]func(u *UTXO){
		"vout":    func(u *UTXO) { u.Vout = 1 },
		"amount":  func(u *UTXO) { u.Amount = 1001 },
		"address": func(u *UTXO) { u.Address = "addr2" },
		"script":  func(u *UTXO) { u.Script = "6a" },
	}
	for name, mutate := range mutations {
		cp := *base
		mutate(&cp)
		if hashUTXO(&cp) == h {
			t.Errorf("changing %s did not change the hash", name)
		}
	}
}

func TestHashUTXO_AddressScriptBoundary(t *testing.T) {
	a := &UTXO{TxID: txid("a"), Address: "ab", Script: "cd"}
	b := &UTXO{TxID: txid("a"), Address: "abc", Script: "d"}
	if hashUTXO(a) == hashUTXO(b) {
		t.Error("address/script boundary must be unambiguous")
	}
}
