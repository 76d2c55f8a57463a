package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pszemraj/localpaste/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRejectsSecondOpener(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = Open(dbPath)
	require.Error(t, err)
	var lockErr *types.LockError
	require.ErrorAs(t, err, &lockErr)
}

func TestShareKeepsPointerIdentity(t *testing.T) {
	store := openTestStore(t)
	shared := store.Share()
	assert.Same(t, store, shared)
	assert.Same(t, store.FolderTxnLock(), shared.FolderTxnLock())
}

func TestInsertRejectsExistingKey(t *testing.T) {
	store := openTestStore(t)
	table, err := store.OpenTable("pastes")
	require.NoError(t, err)

	require.NoError(t, table.Insert([]byte("x"), []byte("one")))
	err = table.Insert([]byte("x"), []byte("two"))
	assert.ErrorIs(t, err, types.ErrAlreadyExists)

	value, found, err := table.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("one"), value, "failed insert must not clobber")
}

func TestUpdateSkipLeavesValueUntouched(t *testing.T) {
	store := openTestStore(t)
	table, err := store.OpenTable("pastes")
	require.NoError(t, err)
	require.NoError(t, table.Put([]byte("k"), []byte("v")))

	err = table.Update([]byte("k"), func(old []byte) ([]byte, error) {
		return nil, ErrSkipUpdate
	})
	require.NoError(t, err)

	value, found, err := table.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestUpdateNilDeletesKey(t *testing.T) {
	store := openTestStore(t)
	table, err := store.OpenTable("pastes")
	require.NoError(t, err)
	require.NoError(t, table.Put([]byte("k"), []byte("v")))

	err = table.Update([]byte("k"), func(old []byte) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, found, err := table.Get([]byte("k"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForEachIteratesInKeyOrder(t *testing.T) {
	store := openTestStore(t)
	table, err := store.OpenTable("ordered")
	require.NoError(t, err)

	for _, k := range []string{"b", "a", "c"} {
		require.NoError(t, table.Put([]byte(k), []byte(k)))
	}

	var keys []string
	require.NoError(t, table.ForEach(func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestClearAndLen(t *testing.T) {
	store := openTestStore(t)
	table, err := store.OpenTable("t")
	require.NoError(t, err)

	require.NoError(t, table.Put([]byte("a"), []byte("1")))
	require.NoError(t, table.Put([]byte("b"), []byte("2")))

	n, err := table.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, table.Clear())
	empty, err := table.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestTablesAreIsolated(t *testing.T) {
	store := openTestStore(t)
	a, err := store.OpenTable("a")
	require.NoError(t, err)
	b, err := store.OpenTable("b")
	require.NoError(t, err)

	require.NoError(t, a.Put([]byte("k"), []byte("va")))
	_, found, err := b.Get([]byte("k"))
	require.NoError(t, err)
	assert.False(t, found)
}
