package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		err := db.Put([]byte("key1"), []byte("value1"))
		if err != nil {
			t.Fatalf("Put() error: %v", err)
		}

		val, err := db.Get([]byte("key1"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("value1")) {
			t.Errorf("Get() = %q, want %q", val, "value1")
		}
	})

	t.Run("GetNonexistent", func(t *testing.T) {
		_, err := db.Get([]byte("nonexistent"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() for missing key error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Has", func(t *testing.T) {
		db.Put([]byte("exists"), []byte("yes"))

		ok, err := db.Has([]byte("exists"))
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if !ok {
			t.Error("Has() = false for existing key")
		}

		ok, err = db.Has([]byte("missing"))
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if ok {
			t.Error("Has() = true for missing key")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db.Put([]byte("ow"), []byte("first"))
		db.Put([]byte("ow"), []byte("second"))

		val, err := db.Get([]byte("ow"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("second")) {
			t.Errorf("Get() after overwrite = %q, want %q", val, "second")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db.Put([]byte("del"), []byte("value"))

		err := db.Delete([]byte("del"))
		if err != nil {
			t.Fatalf("Delete() error: %v", err)
		}

		ok, _ := db.Has([]byte("del"))
		if ok {
			t.Error("key should be gone after Delete()")
		}

		_, err = db.Get([]byte("del"))
		if err == nil {
			t.Error("Get() after Delete() should return error")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		// Deleting a nonexistent key should not error.
		err := db.Delete([]byte("never-existed"))
		if err != nil {
			t.Errorf("Delete() nonexistent key error: %v", err)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		err := db.Put([]byte("empty"), []byte{})
		if err != nil {
			t.Fatalf("Put() empty value error: %v", err)
		}

		val, err := db.Get([]byte("empty"))
		if err != nil {
			t.Fatalf("Get() empty value error: %v", err)
		}
		if len(val) != 0 {
			t.Errorf("expected empty value, got %d bytes", len(val))
		}
	})

	t.Run("BinaryData", func(t *testing.T) {
		key := []byte{0x00, 0x01, 0xFF}
		value := make([]byte, 256)
		for i := range value {
			value[i] = byte(i)
		}

		err := db.Put(key, value)
		if err != nil {
			t.Fatalf("Put() binary error: %v", err)
		}

		got, err := db.Get(key)
		if err != nil {
			t.Fatalf("Get() binary error: %v", err)
		}
		if !bytes.Equal(got, value) {
			t.Error("binary roundtrip failed")
		}
	})

	t.Run("ForEach", func(t *testing.T) {
		db.Put([]byte("prefix/a"), []byte("1"))
		db.Put([]byte("prefix/b"), []byte("2"))
		db.Put([]byte("prefix/c"), []byte("3"))
		db.Put([]byte("other/x"), []byte("4"))

		var count int
		err := db.ForEach([]byte("prefix/"), func(key, value []byte) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if count != 3 {
			t.Errorf("ForEach(prefix/) count = %d, want 3", count)
		}
	})

	t.Run("ForEachOrdered", func(t *testing.T) {
		db.Put([]byte("ord/c"), []byte("3"))
		db.Put([]byte("ord/a"), []byte("1"))
		db.Put([]byte("ord/b\x00\x02"), []byte("2b"))
		db.Put([]byte("ord/b\x00\x01"), []byte("2a"))

		var got []string
		err := db.ForEach([]byte("ord/"), func(key, value []byte) error {
			got = append(got, string(value))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		want := []string{"1", "2a", "2b", "3"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("ForEach(ord/) order = %v, want %v", got, want)
		}
	})

	t.Run("ForEachStopEarly", func(t *testing.T) {
		stop := errors.New("stop")
		var count int
		err := db.ForEach([]byte("ord/"), func(key, value []byte) error {
			count++
			return stop
		})
		if err != stop {
			t.Fatalf("ForEach() err = %v, want stop", err)
		}
		if count != 1 {
			t.Errorf("ForEach() called %d times, want 1", count)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db.Put([]byte("batch/old"), []byte("x"))

		b, _ := NewBatch(db)
		b.Put([]byte("batch/new1"), []byte("1"))
		b.Put([]byte("batch/new2"), []byte("2"))
		b.Delete([]byte("batch/old"))

		// Nothing is visible before Commit.
		if ok, _ := db.Has([]byte("batch/new1")); ok {
			t.Error("batch write visible before Commit()")
		}

		if err := b.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}
		for _, k := range []string{"batch/new1", "batch/new2"} {
			if ok, _ := db.Has([]byte(k)); !ok {
				t.Errorf("%s missing after Commit()", k)
			}
		}
		if ok, _ := db.Has([]byte("batch/old")); ok {
			t.Error("batch/old still present after Commit()")
		}
	})

	t.Run("BatchDeleteNonexistent", func(t *testing.T) {
		b, _ := NewBatch(db)
		b.Delete([]byte("batch/never"))
		if err := b.Commit(); err != nil {
			t.Errorf("Commit() with missing delete error: %v", err)
		}
	})

	t.Run("ForEachEmpty", func(t *testing.T) {
		var count int
		err := db.ForEach([]byte("nonexistent/"), func(key, value []byte) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if count != 0 {
			t.Errorf("ForEach(nonexistent/) count = %d, want 0", count)
		}
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestSQLiteDB(t *testing.T) {
	db, err := NewSQLite(filepath.Join(t.TempDir(), "kv.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLite() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestPrefixDB_Suite(t *testing.T) {
	db := NewPrefixDB(NewMemory(), []byte("suite/"))
	testDB(t, db)
}

func TestNewBatch_Atomicity(t *testing.T) {
	if _, atomic := NewBatch(NewMemory()); !atomic {
		t.Error("MemoryDB batch should be atomic")
	}
	if _, atomic := NewBatch(NewPrefixDB(NewMemory(), []byte("p/"))); !atomic {
		t.Error("PrefixDB over MemoryDB batch should be atomic")
	}
	if _, atomic := NewBatch(plainDB{NewMemory()}); atomic {
		t.Error("batch over a DB without Batcher should not be atomic")
	}
	if _, atomic := NewBatch(NewPrefixDB(plainDB{NewMemory()}, []byte("p/"))); atomic {
		t.Error("PrefixDB over a non-batching DB should not be atomic")
	}
}

// plainDB hides the Batcher implementation of the wrapped DB.
type plainDB struct{ DB }

func TestFallbackBatch(t *testing.T) {
	db := plainDB{NewMemory()}
	b, _ := NewBatch(db)
	b.Put([]byte("k"), []byte("v"))
	b.Delete([]byte("gone"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	val, err := db.Get([]byte("k"))
	if err != nil || string(val) != "v" {
		t.Fatalf("Get() = %q, %v; want v", val, err)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		in   []byte
		want []byte
	}{
		{[]byte("a/"), []byte("a0")},
		{[]byte{0x01, 0xFF}, []byte{0x02}},
		{[]byte{0xFF, 0xFF}, nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got := prefixUpperBound(tt.in)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("leveldb", t.TempDir(), Options{}); err == nil {
		t.Error("Open() with unknown backend should fail")
	}
}

func TestBadgerDB_Persistence(t *testing.T) {
	dir := t.TempDir()

	// Write data.
	db1, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	db1.Put([]byte("persist"), []byte("data"))
	db1.Close()

	// Reopen and read.
	db2, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() reopen error: %v", err)
	}
	defer db2.Close()

	val, err := db2.Get([]byte("persist"))
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if !bytes.Equal(val, []byte("data")) {
		t.Errorf("persisted value = %q, want %q", val, "data")
	}
}

func TestBadgerBatch_SplitsOversizedCommit(t *testing.T) {
	db, err := NewBadgerWithOptions(t.TempDir(), Options{MemTableMB: 16})
	if err != nil {
		t.Fatalf("NewBadgerWithOptions() error: %v", err)
	}
	defer db.Close()

	// Well past 15% of a 16 MiB memtable.
	const n = 40000
	value := bytes.Repeat([]byte("v"), 128)

	b := db.NewBatch()
	b.Put([]byte("last"), []byte("first"))
	for i := 0; i < n; i++ {
		b.Put([]byte(fmt.Sprintf("key-%06d", i)), value)
	}
	b.Delete([]byte("key-000000"))
	b.Put([]byte("last"), []byte("final"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}

	if txns := b.(*badgerBatch).txns; txns < 2 {
		t.Errorf("Commit used %d transactions, want the batch split", txns)
	}

	count := 0
	db.ForEach([]byte("key-"), func(_, _ []byte) error {
		count++
		return nil
	})
	if count != n-1 {
		t.Errorf("keys after commit = %d, want %d", count, n-1)
	}
	got, err := db.Get([]byte("last"))
	if err != nil {
		t.Fatalf("Get(last) error: %v", err)
	}
	if string(got) != "final" {
		t.Errorf("Get(last) = %q, want the last write %q", got, "final")
	}
}

func TestBadgerBatch_SingleTxnWhenItFits(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	b := db.NewBatch()
	for i := 0; i < 100; i++ {
		b.Put([]byte(fmt.Sprintf("k%03d", i)), []byte("v"))
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if txns := b.(*badgerBatch).txns; txns != 1 {
		t.Errorf("Commit used %d transactions, want 1", txns)
	}
}
