package store

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileRebuildsClearedDerivedTables(t *testing.T) {
	ps := newTestPasteStore(t, nil)
	const total = 100
	for i := int64(0); i < total; i++ {
		require.NoError(t, ps.Create(newPaste("p", "c", "", time.UnixMilli(1000+i).UTC())))
	}

	// Corrupt the derived state the way a crashed process would leave it.
	require.NoError(t, ps.meta.Clear())

	need, err := ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.True(t, need, "cardinality mismatch must trigger reconcile")

	require.NoError(t, ps.Reconcile())

	metaCount, err := ps.meta.Len()
	require.NoError(t, err)
	updatedCount, err := ps.updated.Len()
	require.NoError(t, err)
	assert.Equal(t, total, metaCount)
	assert.Equal(t, total, updatedCount)

	fromIndex, err := ps.ListMeta(total, nil)
	require.NoError(t, err)
	canonical, err := ps.List(total, nil)
	require.NoError(t, err)
	require.Len(t, fromIndex, total)
	for i := range canonical {
		assert.Equal(t, canonical[i].ID, fromIndex[i].ID)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ps := newTestPasteStore(t, nil)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, ps.Create(newPaste("p", "c", "", time.UnixMilli(1000+i).UTC())))
	}

	require.NoError(t, ps.Reconcile())
	first, err := ps.ListMeta(10, nil)
	require.NoError(t, err)

	require.NoError(t, ps.Reconcile())
	second, err := ps.ListMeta(10, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	need, err := ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.False(t, need)
}

func TestReconcileClearsFault(t *testing.T) {
	ps := newTestPasteStore(t, nil)
	require.NoError(t, ps.Create(newPaste("p", "c", "", time.UnixMilli(1000).UTC())))

	ps.markFaulted()
	assert.False(t, ps.Usable())

	need, err := ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.True(t, need)

	require.NoError(t, ps.Reconcile())
	assert.True(t, ps.Usable())
}

func TestNeedsReconcileOnSchemaMismatch(t *testing.T) {
	ps := newTestPasteStore(t, nil)

	stale := binary.BigEndian.AppendUint32(nil, CurrentMetaSchemaVersion-1)
	require.NoError(t, ps.metaState.Put(metaVersionKey, stale))

	need, err := ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.True(t, need)
	assert.False(t, ps.Usable())
}

func TestNeedsReconcileOnInvalidMarkerLength(t *testing.T) {
	ps := newTestPasteStore(t, nil)

	require.NoError(t, ps.metaState.Put(metaVersionKey, []byte{1, 2}))

	need, err := ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.True(t, need)
	assert.False(t, ps.Usable())
}

func TestNeedsReconcileOnInterruptedMutation(t *testing.T) {
	ps := newTestPasteStore(t, nil)

	guard, err := ps.beginMutation()
	require.NoError(t, err)

	need, err := ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.True(t, need, "non-zero in-progress counter means an interrupted write")

	guard.finish()
	need, err = ps.NeedsReconcile(false)
	require.NoError(t, err)
	assert.False(t, need)
}

func TestNeedsReconcileForce(t *testing.T) {
	ps := newTestPasteStore(t, nil)
	need, err := ps.NeedsReconcile(true)
	require.NoError(t, err)
	assert.True(t, need)
}
