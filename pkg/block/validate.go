package block

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Validation errors.
var (
	ErrBadBlockHash   = errors.New("invalid block hash")
	ErrBadHeight      = errors.New("invalid block height")
	ErrNoTransactions = errors.New("block has no transactions")
	ErrBadTxID        = errors.New("invalid transaction id")
	ErrDuplicateTx    = errors.New("duplicate transaction in block")
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrBadInput       = errors.New("invalid input reference")
	ErrBadValue       = errors.New("invalid output value")
	ErrDuplicateVout  = errors.New("duplicate output index")
	ErrBadScript      = errors.New("invalid locking script")
	ErrBadAddress     = errors.New("invalid address")
)

// Validate checks that the block is complete enough to derive UTXO
// changes from. A block that fails here is rejected as a whole.
func (b *Block) Validate() error {
	if err := checkHash(b.Hash); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBlockHash, err)
	}
	if b.Height < 0 {
		return fmt.Errorf("%w: %d", ErrBadHeight, b.Height)
	}
	if len(b.Tx) == 0 {
		return ErrNoTransactions
	}

	seen := make(map[string]struct{}, len(b.Tx))
	for i := range b.Tx {
		t := &b.Tx[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		if _, dup := seen[t.TxID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTx, t.TxID)
		}
		seen[t.TxID] = struct{}{}
	}
	return nil
}

// Validate checks a single transaction's structure.
func (t *Transaction) Validate() error {
	if err := checkHash(t.TxID); err != nil {
		return fmt.Errorf("%w %q: %v", ErrBadTxID, t.TxID, err)
	}
	if len(t.Vin) == 0 {
		return ErrNoInputs
	}
	for i, in := range t.Vin {
		if in.IsCoinbase() {
			continue
		}
		if err := checkHash(in.TxID); err != nil {
			return fmt.Errorf("%w: vin %d: %v", ErrBadInput, i, err)
		}
	}

	indexes := make(map[uint32]struct{}, len(t.Vout))
	for _, out := range t.Vout {
		if _, dup := indexes[out.N]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateVout, out.N)
		}
		indexes[out.N] = struct{}{}
		if _, err := out.Amount(); err != nil {
			return err
		}
		if _, err := hex.DecodeString(out.ScriptPubKey.Hex); err != nil {
			return fmt.Errorf("%w: output %d: %v", ErrBadScript, out.N, err)
		}
		if err := out.ScriptPubKey.checkAddresses(); err != nil {
			return fmt.Errorf("%w: output %d: %v", ErrBadAddress, out.N, err)
		}
	}
	return nil
}

// checkAddresses rejects control characters. NUL in particular would let
// one address's index keys fall under another's scan prefix.
func (s ScriptPubKey) checkAddresses() error {
	for _, a := range append([]string{s.Address}, s.Addresses...) {
		if i := strings.IndexFunc(a, unicode.IsControl); i >= 0 {
			return fmt.Errorf("%q has a control character at byte %d", a, i)
		}
	}
	return nil
}

// checkHash accepts exactly 64 lowercase or uppercase hex characters.
func checkHash(s string) error {
	if len(s) != chainhash.MaxHashStringSize {
		return fmt.Errorf("length %d, want %d", len(s), chainhash.MaxHashStringSize)
	}
	if strings.TrimLeft(s, "0123456789abcdefABCDEF") != "" {
		return fmt.Errorf("non-hex characters")
	}
	_, err := chainhash.NewHashFromStr(s)
	return err
}
