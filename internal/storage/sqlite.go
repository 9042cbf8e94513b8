package storage

import (
	"database/sql"
	"errors"
	"fmt"

	// Register the SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID`

// SQLiteDB implements DB and Batcher on a single SQLite table.
// Keys compare as BLOBs (memcmp), so range scans come back in byte order.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database file at path.
func NewSQLite(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

// Put stores a key-value pair.
func (s *SQLiteDB) Put(key, value []byte) error {
	if _, err := s.db.Exec(upsertKV, key, nonNil(value)); err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *SQLiteDB) Delete(key []byte) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE k = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (s *SQLiteDB) Has(key []byte) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE k = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite has: %w", err)
	}
	return true, nil
}

// ForEach iterates over all keys with the given prefix. The rows are read
// by one statement, which sees one snapshot, and are fully drained before
// fn is called.
func (s *SQLiteDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	end := prefixUpperBound(prefix)
	switch {
	case len(prefix) == 0:
		rows, err = s.db.Query(`SELECT k, v FROM kv ORDER BY k`)
	case end == nil:
		rows, err = s.db.Query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, prefix)
	default:
		rows, err = s.db.Query(`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, prefix, end)
	}
	if err != nil {
		return fmt.Errorf("sqlite scan: %w", err)
	}

	var entries []batchOp
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite scan row: %w", err)
		}
		entries = append(entries, batchOp{key: k, value: nonNil(v)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite scan: %w", err)
	}
	rows.Close()

	for _, e := range entries {
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a batch committed in one SQL transaction.
func (s *SQLiteDB) NewBatch() Batch {
	return &sqliteBatch{db: s.db}
}

// Close closes the database.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

const upsertKV = `INSERT INTO kv (k, v) VALUES (?, ?)
	ON CONFLICT(k) DO UPDATE SET v = excluded.v`

type sqliteBatch struct {
	db  *sql.DB
	ops []batchOp
}

func (sb *sqliteBatch) Put(key, value []byte) error {
	sb.ops = append(sb.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (sb *sqliteBatch) Delete(key []byte) error {
	sb.ops = append(sb.ops, batchOp{key: cloneBytes(key), delete: true})
	return nil
}

func (sb *sqliteBatch) Commit() error {
	tx, err := sb.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	for _, op := range sb.ops {
		if op.delete {
			_, err = tx.Exec(`DELETE FROM kv WHERE k = ?`, op.key)
		} else {
			_, err = tx.Exec(upsertKV, op.key, nonNil(op.value))
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit (%d ops): %w", len(sb.ops), err)
	}
	sb.ops = nil
	return nil
}

// nonNil keeps empty values from being stored as NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
