// Package storage provides database abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending
	// byte order, reading from a single consistent snapshot.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch buffers writes that are applied together on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	// Commit applies all buffered writes in order. Implementations
	// returned by a Batcher apply them atomically: readers see either none
	// or all. Badger is the exception for a batch larger than one
	// transaction, which it commits in consecutive parts.
	Commit() error
}

// Batcher is implemented by databases that support atomic batches.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns a batch for db and reports whether it commits atomically.
// Databases without batch support get a sequential fallback batch.
func NewBatch(db DB) (Batch, bool) {
	b, ok := db.(Batcher)
	if !ok {
		return &fallbackBatch{db: db}, false
	}
	atomic := true
	if w, ok := db.(interface{ Atomic() bool }); ok {
		atomic = w.Atomic()
	}
	return b.NewBatch(), atomic
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// fallbackBatch buffers writes and applies them one by one in order.
type fallbackBatch struct {
	db  DB
	ops []batchOp
}

func (fb *fallbackBatch) Put(key, value []byte) error {
	fb.ops = append(fb.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (fb *fallbackBatch) Delete(key []byte) error {
	fb.ops = append(fb.ops, batchOp{key: cloneBytes(key), delete: true})
	return nil
}

func (fb *fallbackBatch) Commit() error {
	for _, op := range fb.ops {
		if op.delete {
			if err := fb.db.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := fb.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	fb.ops = nil
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// prefixUpperBound returns the smallest key greater than every key starting
// with prefix, or nil if no such key exists (prefix is empty or all 0xFF).
func prefixUpperBound(prefix []byte) []byte {
	end := cloneBytes(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
