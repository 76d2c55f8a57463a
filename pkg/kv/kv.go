package kv

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pszemraj/localpaste/pkg/lock"
	"github.com/pszemraj/localpaste/pkg/types"
)

// DatabaseFileName is the bbolt file inside the database directory.
const DatabaseFileName = "localpaste.db"

// Store is the ordered key/value façade over bbolt. It owns the process
// owner lock and the folder transaction mutex shared by every subsystem
// that opens the same database in-process.
type Store struct {
	db         *bolt.DB
	ownerGuard *lock.OwnerLockGuard
	folderTxn  *sync.Mutex
}

// Open acquires the owner lock for the database directory, then opens the
// bbolt file. A lock failure is classified through the tri-state probe into
// the user-facing LockError.
func Open(dbPath string) (*Store, error) {
	guard, err := lock.AcquireOwnerLock(dbPath)
	if err != nil {
		var lockErr *types.LockError
		if errors.As(err, &lockErr) {
			return nil, lock.ClassifyLockFailure(dbPath)
		}
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dbPath, DatabaseFileName), 0o600, &bolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		guard.Release()
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, lock.ClassifyLockFailure(dbPath)
		}
		return nil, types.NewStorageError("open database", err)
	}

	return &Store{
		db:         db,
		ownerGuard: guard,
		folderTxn:  &sync.Mutex{},
	}, nil
}

// Share returns a handle to the same store. Pointer identity of the owner
// lock guard and the folder transaction mutex is preserved, so a second
// subsystem in the same process serializes against the first.
func (s *Store) Share() *Store { return s }

// FolderTxnLock returns the process-wide mutex serializing folder-affecting
// flows. Owned here so every table wrapper cloned from this store shares it.
func (s *Store) FolderTxnLock() *sync.Mutex { return s.folderTxn }

// Flush forces a durability point.
func (s *Store) Flush() error {
	if err := s.db.Sync(); err != nil {
		return types.NewStorageError("flush", err)
	}
	return nil
}

// Close releases the store and the owner lock.
func (s *Store) Close() error {
	err := s.db.Close()
	s.ownerGuard.Release()
	if err != nil {
		return types.NewStorageError("close database", err)
	}
	return nil
}

// OpenTable returns a named table, creating it if missing.
func (s *Store) OpenTable(name string) (*Table, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, types.NewStorageError(fmt.Sprintf("open table %s", name), err)
	}
	return &Table{db: s.db, name: []byte(name)}, nil
}

// Table is a named logical table. Each mutating call is one atomic bbolt
// write transaction; an aborted transaction leaves no partial state visible.
// Atomicity never spans tables — coordinating multiple tables is the
// transaction coordinator's problem.
type Table struct {
	db   *bolt.DB
	name []byte
}

// Name returns the table name.
func (t *Table) Name() string { return string(t.name) }

// Get returns a copy of the value for key, and whether it exists.
func (t *Table) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := t.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(t.name).Get(key)
		if data == nil {
			return nil
		}
		found = true
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		return nil, false, types.NewStorageError("get", err)
	}
	return value, found, nil
}

// Put upserts key to value.
func (t *Table) Put(key, value []byte) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.name).Put(key, value)
	})
	if err != nil {
		return types.NewStorageError("put", err)
	}
	return nil
}

// Insert stores value under key only if the key is absent.
func (t *Table) Insert(key, value []byte) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.name)
		if b.Get(key) != nil {
			return types.ErrAlreadyExists
		}
		return b.Put(key, value)
	})
	if err != nil {
		if errors.Is(err, types.ErrAlreadyExists) {
			return err
		}
		return types.NewStorageError("insert", err)
	}
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (t *Table) Delete(key []byte) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.name).Delete(key)
	})
	if err != nil {
		return types.NewStorageError("delete", err)
	}
	return nil
}

// DeleteAndReturn removes key and returns the previous value, if any.
func (t *Table) DeleteAndReturn(key []byte) ([]byte, bool, error) {
	var prev []byte
	var found bool
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.name)
		data := b.Get(key)
		if data == nil {
			return nil
		}
		found = true
		prev = make([]byte, len(data))
		copy(prev, data)
		return b.Delete(key)
	})
	if err != nil {
		return nil, false, types.NewStorageError("delete", err)
	}
	return prev, found, nil
}

// ErrSkipUpdate aborts an Update without writing; the table is unchanged and
// the caller sees no error.
var ErrSkipUpdate = errors.New("skip update")

// Update runs a single-key read-modify-write in one write transaction.
// fn receives the current value (nil when absent) and returns the
// replacement; returning nil deletes the key. Returning ErrSkipUpdate leaves
// the table untouched. Any other error aborts the transaction with no
// partial state visible to readers.
func (t *Table) Update(key []byte, fn func(old []byte) ([]byte, error)) error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(t.name)
		old := b.Get(key)
		var oldCopy []byte
		if old != nil {
			oldCopy = make([]byte, len(old))
			copy(oldCopy, old)
		}
		next, err := fn(oldCopy)
		if err != nil {
			return err
		}
		if next == nil {
			return b.Delete(key)
		}
		return b.Put(key, next)
	})
	if err != nil {
		if errors.Is(err, ErrSkipUpdate) {
			return nil
		}
		return err
	}
	return nil
}

// ForEach iterates the table in ascending key order over a consistent
// snapshot. The callback must not retain its arguments.
func (t *Table) ForEach(fn func(key, value []byte) error) error {
	err := t.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(t.name).ForEach(fn)
	})
	if err != nil {
		return err
	}
	return nil
}

// Len returns the number of keys in the table.
func (t *Table) Len() (int, error) {
	var n int
	err := t.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(t.name).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, types.NewStorageError("len", err)
	}
	return n, nil
}

// IsEmpty reports whether the table has no keys.
func (t *Table) IsEmpty() (bool, error) {
	var empty bool
	err := t.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(t.name).Cursor().First()
		empty = k == nil
		return nil
	})
	if err != nil {
		return false, types.NewStorageError("is-empty", err)
	}
	return empty, nil
}

// Clear removes every key from the table.
func (t *Table) Clear() error {
	err := t.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(t.name); err != nil {
			return err
		}
		_, err := tx.CreateBucket(t.name)
		return err
	})
	if err != nil {
		return types.NewStorageError("clear", err)
	}
	return nil
}
