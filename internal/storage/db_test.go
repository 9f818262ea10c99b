package storage

import (
	"bytes"
	"errors"
	"testing"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		if err := db.Put([]byte("key1"), []byte("value1")); err != nil {
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
			t.Errorf("Get() for missing key = %v, want ErrNotFound", err)
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

	t.Run("Delete", func(t *testing.T) {
		db.Put([]byte("doomed"), []byte("x"))
		if err := db.Delete([]byte("doomed")); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if ok, _ := db.Has([]byte("doomed")); ok {
			t.Error("key should be gone after Delete()")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db.Put([]byte("k"), []byte("old"))
		db.Put([]byte("k"), []byte("new"))
		val, err := db.Get([]byte("k"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("new")) {
			t.Errorf("Get() = %q after overwrite, want %q", val, "new")
		}
	})

	t.Run("ForEach", func(t *testing.T) {
		db.Put([]byte("acct/a"), []byte("1"))
		db.Put([]byte("acct/b"), []byte("2"))
		db.Put([]byte("meta/x"), []byte("3"))

		seen := map[string]string{}
		err := db.ForEach([]byte("acct/"), func(key, value []byte) error {
			seen[string(key)] = string(value)
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if len(seen) != 2 {
			t.Errorf("ForEach() visited %d keys, want 2", len(seen))
		}
		if seen["acct/a"] != "1" || seen["acct/b"] != "2" {
			t.Errorf("ForEach() visited wrong entries: %v", seen)
		}
	})

	t.Run("ForEachEarlyStop", func(t *testing.T) {
		db.Put([]byte("stop/a"), []byte("1"))
		db.Put([]byte("stop/b"), []byte("2"))

		count := 0
		sentinel := errors.New("stop")
		err := db.ForEach([]byte("stop/"), func(key, value []byte) error {
			count++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("ForEach() error = %v, want sentinel", err)
		}
		if count != 1 {
			t.Errorf("ForEach() visited %d keys after stop, want 1", count)
		}
	})
}

func TestMemoryDB(t *testing.T) {
	testDB(t, NewMemory())
}

func TestBadgerDB(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	testDB(t, db)
}

func TestPrefixDB(t *testing.T) {
	inner := NewMemory()
	testDB(t, NewPrefixDB(inner, []byte("ns1/")))

	// Namespaces must not bleed into each other.
	a := NewPrefixDB(inner, []byte("a/"))
	b := NewPrefixDB(inner, []byte("b/"))
	a.Put([]byte("k"), []byte("from-a"))
	b.Put([]byte("k"), []byte("from-b"))

	val, err := a.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(val) != "from-a" {
		t.Errorf("namespace a sees %q, want %q", val, "from-a")
	}

	count := 0
	a.ForEach(nil, func(key, value []byte) error {
		if string(key) != "k" {
			t.Errorf("ForEach key = %q, want logical key %q", key, "k")
		}
		count++
		return nil
	})
	if count != 1 {
		t.Errorf("namespace a has %d keys, want 1", count)
	}
}
