package store

import (
	"encoding/binary"

	"github.com/pszemraj/localpaste/pkg/kv"
	"github.com/pszemraj/localpaste/pkg/types"
)

// CurrentMetaSchemaVersion is the derived-index schema generation. Bump it
// whenever the pastes_meta or pastes_by_updated layout changes; a mismatch
// routes readers to canonical and forces a reconcile at open.
const CurrentMetaSchemaVersion uint32 = 3

// MetaStateTableName holds the scalar derived-index markers.
const MetaStateTableName = "pastes_meta_state"

var (
	metaVersionKey         = []byte("version")
	metaInProgressCountKey = []byte("in_progress_count")
	metaFaultedKey         = []byte("faulted")
)

// readIndexState decodes the three state markers. ok is false when any
// marker has an invalid length, which forces a reconcile.
func readIndexState(table *kv.Table) (state types.IndexState, ok bool, err error) {
	ok = true

	if data, found, gerr := table.Get(metaVersionKey); gerr != nil {
		return state, false, gerr
	} else if found {
		if len(data) != 4 {
			ok = false
		} else {
			state.SchemaVersion = binary.BigEndian.Uint32(data)
		}
	}

	if data, found, gerr := table.Get(metaInProgressCountKey); gerr != nil {
		return state, false, gerr
	} else if found {
		if len(data) != 8 {
			ok = false
		} else {
			state.InProgressCount = binary.BigEndian.Uint64(data)
		}
	}

	if data, found, gerr := table.Get(metaFaultedKey); gerr != nil {
		return state, false, gerr
	} else if found {
		if len(data) != 1 {
			ok = false
		} else {
			state.Faulted = data[0] != 0
		}
	}

	return state, ok, nil
}

func writeIndexState(table *kv.Table, state types.IndexState) error {
	version := binary.BigEndian.AppendUint32(nil, state.SchemaVersion)
	if err := table.Put(metaVersionKey, version); err != nil {
		return err
	}
	count := binary.BigEndian.AppendUint64(nil, state.InProgressCount)
	if err := table.Put(metaInProgressCountKey, count); err != nil {
		return err
	}
	faulted := []byte{0}
	if state.Faulted {
		faulted[0] = 1
	}
	return table.Put(metaFaultedKey, faulted)
}

// Usable reports whether the derived indexes may serve reads: the schema
// matches and no fault is recorded. Readers that see false fall back to
// canonical scans.
func (s *PasteStore) Usable() bool {
	state, ok, err := readIndexState(s.metaState)
	if err != nil || !ok {
		return false
	}
	return state.SchemaVersion == CurrentMetaSchemaVersion && !state.Faulted
}

// adjustInProgress applies delta to the in-progress counter, saturating at
// zero on the way down.
func (s *PasteStore) adjustInProgress(delta int64) error {
	return s.metaState.Update(metaInProgressCountKey, func(old []byte) ([]byte, error) {
		var current uint64
		if len(old) == 8 {
			current = binary.BigEndian.Uint64(old)
		}
		if delta < 0 {
			dec := uint64(-delta)
			if dec > current {
				current = 0
			} else {
				current -= dec
			}
		} else {
			current += uint64(delta)
		}
		return binary.BigEndian.AppendUint64(nil, current), nil
	})
}

// markFaulted sets the sticky fault flag so readers route to canonical.
func (s *PasteStore) markFaulted() {
	if err := s.metaState.Put(metaFaultedKey, []byte{1}); err != nil {
		s.logger.Error().Err(err).Msg("failed to record derived index fault")
	}
}

// metaMutationGuard brackets a write that maintains the derived indexes.
// Every exit path must call finish (or finishWithDerivedWrite); callers do so
// explicitly, without defer, so a panic between begin and finish leaves the
// counter raised and NeedsReconcile reports an interrupted mutation.
type metaMutationGuard struct {
	store *PasteStore
	done  bool
}

func (s *PasteStore) beginMutation() (*metaMutationGuard, error) {
	if err := s.adjustInProgress(1); err != nil {
		return nil, err
	}
	return &metaMutationGuard{store: s}, nil
}

// finish decrements the counter. Idempotent.
func (g *metaMutationGuard) finish() {
	if g == nil || g.done {
		return
	}
	g.done = true
	if err := g.store.adjustInProgress(-1); err != nil {
		g.store.logger.Error().Err(err).Msg("failed to end derived index mutation")
	}
}

// finishWithDerivedWrite ends the mutation after the canonical commit. A
// failed derived write flips the fault flag instead of surfacing to the
// caller; readers take the canonical fallback path until reconcile.
func (g *metaMutationGuard) finishWithDerivedWrite(derivedErr error) {
	if derivedErr != nil {
		g.store.logger.Warn().
			Err(derivedErr).
			Msg("derived index write failed after canonical commit; marking indexes faulted")
		g.store.markFaulted()
	}
	g.finish()
}
