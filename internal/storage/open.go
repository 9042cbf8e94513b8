package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options tunes the backends. Zero values select the defaults.
type Options struct {
	// MemTableMB is the Badger memtable size in MiB. It bounds how much
	// one block can write in a single transaction.
	MemTableMB int64
}

// Open opens the database backend by name, rooted at dir.
func Open(backend, dir string, opts Options) (DB, error) {
	switch backend {
	case BackendBadger, "":
		return NewBadgerWithOptions(dir, opts)
	case BackendSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir: %w", err)
		}
		return NewSQLite(filepath.Join(dir, "index.sqlite"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", backend)
	}
}
