package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pszemraj/localpaste/pkg/types"
)

func newTestFolderStore(t *testing.T) *FolderStore {
	t.Helper()
	fs, err := NewFolderStore(openTestKV(t))
	require.NoError(t, err)
	return fs
}

func newFolder(name, parentID string) *types.Folder {
	return &types.Folder{
		ID:        uuid.New().String(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.UnixMilli(1000).UTC(),
	}
}

func TestFolderCreateAndGet(t *testing.T) {
	fs := newTestFolderStore(t)
	f := newFolder("projects", "")
	require.NoError(t, fs.Create(f))

	got, err := fs.Get(f.ID)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestFolderCreateRejectsEmptyName(t *testing.T) {
	fs := newTestFolderStore(t)
	err := fs.Create(newFolder("   ", ""))
	assert.ErrorIs(t, err, types.ErrBadRequest)
}

func TestFolderGetMissingIsNotFound(t *testing.T) {
	fs := newTestFolderStore(t)
	_, err := fs.Get("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestFolderListSortsByName(t *testing.T) {
	fs := newTestFolderStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, fs.Create(newFolder(name, "")))
	}
	folders, err := fs.List()
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, "alpha", folders[0].Name)
	assert.Equal(t, "mid", folders[1].Name)
	assert.Equal(t, "zeta", folders[2].Name)
}

func TestFolderUpdateRenamesAndReparents(t *testing.T) {
	fs := newTestFolderStore(t)
	parent := newFolder("parent", "")
	child := newFolder("child", "")
	require.NoError(t, fs.Create(parent))
	require.NoError(t, fs.Create(child))

	updated, err := fs.Update(child.ID, "renamed", strPtr(parent.ID))
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, parent.ID, updated.ParentID)

	// Empty parent moves back to root; blank name keeps the old one.
	updated, err = fs.Update(child.ID, "", strPtr(""))
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Empty(t, updated.ParentID)
}

func TestUpdateCountSaturatesAtZero(t *testing.T) {
	fs := newTestFolderStore(t)
	f := newFolder("f", "")
	require.NoError(t, fs.Create(f))

	require.NoError(t, fs.UpdateCount(f.ID, 2))
	require.NoError(t, fs.UpdateCount(f.ID, -5))

	got, err := fs.Get(f.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PasteCount)
}

func TestUpdateCountMissingFolderIsNotFound(t *testing.T) {
	fs := newTestFolderStore(t)
	err := fs.UpdateCount("missing", 1)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteMarkers(t *testing.T) {
	fs := newTestFolderStore(t)
	require.NoError(t, fs.MarkDeleting([]string{"a", "b"}))

	marked, err := fs.IsDeleteMarked("a")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = fs.IsDeleteMarked("c")
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, fs.ClearDeleteMarkers())
	marked, err = fs.IsDeleteMarked("a")
	require.NoError(t, err)
	assert.False(t, marked)
}
