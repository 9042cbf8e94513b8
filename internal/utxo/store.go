package utxo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/utxo-indexer/internal/storage"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
)

// ErrNotFound is returned by Get for an unknown outpoint.
var ErrNotFound = errors.New("utxo not found")

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<txid><vout> -> UTXO JSON
	prefixAddr = []byte("a/") // a/<address>0x00<amount><txid><vout> -> UTXO JSON
)

// Store implements Reader backed by a storage.DB. The indexer is its only
// writer; all mutations go through Update.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an outpoint: "u/" + txid + vout(4).
func utxoKey(op types.Outpoint) []byte {
	key := make([]byte, 0, len(prefixUTXO)+len(op.TxID)+4)
	key = append(key, prefixUTXO...)
	return op.AppendKey(key)
}

// addrPrefix builds the scan prefix for one address: "a/" + address + 0x00.
// The terminator keeps "A" from matching keys of "AB".
func addrPrefix(address string) []byte {
	p := make([]byte, 0, len(prefixAddr)+len(address)+1)
	p = append(p, prefixAddr...)
	p = append(p, address...)
	return append(p, 0)
}

// addrKey builds an address index key. The big-endian amount makes a
// prefix scan return the address's outputs ascending by amount.
func addrKey(u *UTXO) []byte {
	key := addrPrefix(u.Address)
	key = binary.BigEndian.AppendUint64(key, uint64(u.Amount))
	return u.Outpoint().AppendKey(key)
}

// Atomic reports whether Update commits in a single transaction on the
// backing database.
func (s *Store) Atomic() bool {
	_, atomic := storage.NewBatch(s.db)
	return atomic
}

// Get retrieves a UTXO by its outpoint.
func (s *Store) Get(op types.Outpoint) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(op))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	return decodeUTXO(data)
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(op types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(op))
}

// UpsertMany inserts or replaces records by outpoint in one unit.
func (s *Store) UpsertMany(utxos []*UTXO) error {
	return s.Update(func(w *Writer) error {
		for _, u := range utxos {
			if err := w.Upsert(u); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMany removes records by outpoint in one unit. Unknown outpoints
// are skipped.
func (s *Store) DeleteMany(ops []types.Outpoint) error {
	return s.Update(func(w *Writer) error {
		for _, op := range ops {
			if err := w.Delete(op); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanByAddress returns the address's UTXOs ascending by amount, ties
// broken by outpoint. The scan reads one snapshot of the index.
func (s *Store) ScanByAddress(address string) ([]*UTXO, error) {
	if address == "" {
		return nil, nil
	}
	var utxos []*UTXO
	err := s.db.ForEach(addrPrefix(address), func(_, value []byte) error {
		u, err := decodeUTXO(value)
		if err != nil {
			return err
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}

// SumByAddress returns the total amount held by the address. Amounts are
// read from the index keys without decoding the records.
func (s *Store) SumByAddress(address string) (int64, error) {
	if address == "" {
		return 0, nil
	}
	prefix := addrPrefix(address)
	var total int64
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		if len(key) < len(prefix)+8 {
			return fmt.Errorf("malformed address index key %x", key)
		}
		total += int64(binary.BigEndian.Uint64(key[len(prefix):]))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sum address index: %w", err)
	}
	return total, nil
}

// ForEach iterates over all UTXOs in outpoint order.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(_, value []byte) error {
		u, err := decodeUTXO(value)
		if err != nil {
			return err
		}
		return fn(u)
	})
}

// Update runs fn against a Writer and commits everything it staged as one
// unit. When the database cannot commit atomically, or the unit is too
// large for one transaction, the writes are applied in the order they were
// staged, so a cursor staged last lands last.
func (s *Store) Update(fn func(w *Writer) error) error {
	batch, _ := storage.NewBatch(s.db)
	w := &Writer{
		store:   s,
		batch:   batch,
		pending: make(map[string]*UTXO),
	}
	if err := fn(w); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("utxo commit: %w", err)
	}
	return nil
}

// Writer stages mutations for one Update call. Reads through the writer
// see its own staged changes.
type Writer struct {
	store   *Store
	batch   storage.Batch
	pending map[string]*UTXO // utxo key -> staged record, nil when deleted

	added, spent int
}

// lookup returns the record as it will be after the staged writes, or nil.
func (w *Writer) lookup(key []byte) (*UTXO, error) {
	if u, ok := w.pending[string(key)]; ok {
		return u, nil
	}
	data, err := w.store.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	return decodeUTXO(data)
}

// Upsert stages an insert-or-replace. A replaced record's index entry is
// removed when its address or amount changed.
func (w *Writer) Upsert(u *UTXO) error {
	if u.Amount < 0 {
		return fmt.Errorf("utxo %s: negative amount %d", u.Outpoint(), u.Amount)
	}
	key := utxoKey(u.Outpoint())
	prev, err := w.lookup(key)
	if err != nil {
		return err
	}
	if prev != nil && prev.Address != "" && (prev.Address != u.Address || prev.Amount != u.Amount) {
		if err := w.batch.Delete(addrKey(prev)); err != nil {
			return fmt.Errorf("utxo index delete: %w", err)
		}
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := w.batch.Put(key, data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if u.Address != "" {
		if err := w.batch.Put(addrKey(u), data); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}

	cp := *u
	w.pending[string(key)] = &cp
	w.added++
	return nil
}

// Delete stages removal of a record and its index entry. Deleting an
// unknown outpoint is a no-op.
func (w *Writer) Delete(op types.Outpoint) error {
	key := utxoKey(op)
	prev, err := w.lookup(key)
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}
	if prev.Address != "" {
		if err := w.batch.Delete(addrKey(prev)); err != nil {
			return fmt.Errorf("utxo index delete: %w", err)
		}
	}
	if err := w.batch.Delete(key); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	w.pending[string(key)] = nil
	w.spent++
	return nil
}

// Added returns the number of records staged for insert.
func (w *Writer) Added() int { return w.added }

// Spent returns the number of existing records staged for removal.
func (w *Writer) Spent() int { return w.spent }

func decodeUTXO(data []byte) (*UTXO, error) {
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}
