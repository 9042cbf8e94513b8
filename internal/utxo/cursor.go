package utxo

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/utxo-indexer/internal/storage"
)

// cursorKey holds the height of the last fully applied block.
var cursorKey = []byte("s/last_processed_block")

// Cursor persists the indexing checkpoint.
type Cursor struct {
	db      storage.DB
	genesis int64
}

// NewCursor returns the cursor stored in db. Before anything is applied
// the cursor reads as genesis-1.
func NewCursor(db storage.DB, genesis int64) *Cursor {
	return &Cursor{db: db, genesis: genesis}
}

// Genesis returns the first height the indexer applies.
func (c *Cursor) Genesis() int64 { return c.genesis }

// Get returns the last applied height.
func (c *Cursor) Get() (int64, error) {
	data, err := c.db.Get(cursorKey)
	if errors.Is(err, storage.ErrNotFound) {
		return c.genesis - 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cursor get: %w", err)
	}
	h, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cursor parse %q: %w", data, err)
	}
	return h, nil
}

// Set overwrites the cursor.
func (c *Cursor) Set(height int64) error {
	if err := c.db.Put(cursorKey, encodeHeight(height)); err != nil {
		return fmt.Errorf("cursor set: %w", err)
	}
	return nil
}

// Stage writes the cursor as part of w's unit. Call it after the block's
// UTXO changes so it is the last write on non-atomic databases.
func (c *Cursor) Stage(w *Writer, height int64) error {
	if err := w.batch.Put(cursorKey, encodeHeight(height)); err != nil {
		return fmt.Errorf("cursor stage: %w", err)
	}
	return nil
}

func encodeHeight(h int64) []byte {
	return strconv.AppendInt(nil, h, 10)
}
