package store

import (
	"github.com/pszemraj/localpaste/pkg/types"
)

// NeedsReconcile decides whether the derived indexes must be rebuilt:
// forced, schema mismatch, recorded fault, an interrupted mutation, a
// marker with an invalid length, or a structural mismatch between canonical
// and derived cardinalities.
func (s *PasteStore) NeedsReconcile(force bool) (bool, error) {
	if force {
		return true, nil
	}

	state, ok, err := readIndexState(s.metaState)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	if state.SchemaVersion != CurrentMetaSchemaVersion || state.Faulted || state.InProgressCount > 0 {
		return true, nil
	}

	pastesEmpty, err := s.pastes.IsEmpty()
	if err != nil {
		return false, err
	}
	metaEmpty, err := s.meta.IsEmpty()
	if err != nil {
		return false, err
	}
	updatedEmpty, err := s.updated.IsEmpty()
	if err != nil {
		return false, err
	}
	if pastesEmpty != metaEmpty || pastesEmpty != updatedEmpty {
		return true, nil
	}

	pasteCount, err := s.pastes.Len()
	if err != nil {
		return false, err
	}
	metaCount, err := s.meta.Len()
	if err != nil {
		return false, err
	}
	updatedCount, err := s.updated.Len()
	if err != nil {
		return false, err
	}
	if metaCount != pasteCount || updatedCount != pasteCount {
		return true, nil
	}

	return false, nil
}

// Reconcile wipes and rebuilds the derived tables from canonical, then
// writes a clean index state. Any mid-rebuild error marks the indexes
// faulted so readers keep taking the canonical fallback path; the runtime
// stays correct either way.
func (s *PasteStore) Reconcile() error {
	guard, err := s.beginMutation()
	if err != nil {
		return err
	}

	fail := func(ferr error) error {
		s.markFaulted()
		guard.finish()
		return ferr
	}

	if err := s.meta.Clear(); err != nil {
		return fail(err)
	}
	if err := s.updated.Clear(); err != nil {
		return fail(err)
	}

	rebuilt := 0
	err = s.ScanCanonicalMeta(func(m *types.PasteMeta) error {
		if werr := s.writeDerivedRows(m); werr != nil {
			return werr
		}
		rebuilt++
		return nil
	})
	if err != nil {
		return fail(err)
	}

	if err := s.store.Flush(); err != nil {
		return fail(err)
	}

	clean := types.IndexState{
		SchemaVersion:   CurrentMetaSchemaVersion,
		InProgressCount: 0,
		Faulted:         false,
	}
	if err := writeIndexState(s.metaState, clean); err != nil {
		return fail(err)
	}

	// The guard's decrement saturates against the zero we just wrote.
	guard.finish()
	s.logger.Info().Int("pastes", rebuilt).Msg("rebuilt derived metadata indexes")
	return nil
}
