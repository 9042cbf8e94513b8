package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// DefaultMemTableMB is the Badger memtable size used when none is given.
// One transaction may hold about 15% of it, which fits blocks of roughly
// 60k outputs.
const DefaultMemTableMB = 256

// BadgerDB implements DB and Batcher using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger creates a new Badger database at the given path with the
// default memtable size.
func NewBadger(path string) (*BadgerDB, error) {
	return NewBadgerWithOptions(path, Options{})
}

// NewBadgerWithOptions creates a new Badger database at the given path.
func NewBadgerWithOptions(path string, o Options) (*BadgerDB, error) {
	memMB := o.MemTableMB
	if memMB <= 0 {
		memMB = DefaultMemTableMB
	}
	opts := badger.DefaultOptions(path).WithMemTableSize(memMB << 20)
	opts.Logger = nil // Disable badger's built-in logging.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process (is another utxoindexd instance running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix inside one read
// transaction, so the callback sees a single snapshot.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// NewBatch returns a batch committed in a single Badger update transaction.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerBatch struct {
	db   *badger.DB
	ops  []batchOp
	txns int // transactions used by the last Commit
}

func (bb *badgerBatch) Put(key, value []byte) error {
	bb.ops = append(bb.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (bb *badgerBatch) Delete(key []byte) error {
	bb.ops = append(bb.ops, batchOp{key: cloneBytes(key), delete: true})
	return nil
}

// Commit applies the buffered writes in one transaction. When they do not
// fit in one (badger.ErrTxnTooBig), the transaction filled so far is
// committed and the rest continue in a new one. Writes still land in
// order, so the last op of the batch is always written last.
func (bb *badgerBatch) Commit() error {
	txns, err := bb.commit()
	if err != nil {
		return fmt.Errorf("badger batch commit (%d ops, txn %d): %w", len(bb.ops), txns, err)
	}
	bb.ops = nil
	bb.txns = txns
	return nil
}

func (bb *badgerBatch) commit() (int, error) {
	txns := 1
	txn := bb.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, op := range bb.ops {
		err := applyOp(txn, op)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return txns, err
			}
			txns++
			txn = bb.db.NewTransaction(true)
			err = applyOp(txn, op)
		}
		if err != nil {
			return txns, err
		}
	}
	return txns, txn.Commit()
}

func applyOp(txn *badger.Txn, op batchOp) error {
	if op.delete {
		return txn.Delete(op.key)
	}
	return txn.Set(op.key, op.value)
}
