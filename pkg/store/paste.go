package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/pkg/kv"
	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/types"
)

// Table names owned by the paste store.
const (
	PastesTableName    = "pastes"
	PastesMetaTable    = "pastes_meta"
	PastesUpdatedTable = "pastes_by_updated"
)

// PasteStore provides CRUD, listing and search over the canonical pastes
// table and maintains the derived metadata and recency indexes.
type PasteStore struct {
	store     *kv.Store
	pastes    *kv.Table
	meta      *kv.Table
	updated   *kv.Table
	metaState *kv.Table
	detector  func(string) string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewPasteStore opens the paste tables on a shared store. detector is the
// pure language-detection function; nil disables detection.
func NewPasteStore(store *kv.Store, detector func(string) string) (*PasteStore, error) {
	pastes, err := store.OpenTable(PastesTableName)
	if err != nil {
		return nil, err
	}
	meta, err := store.OpenTable(PastesMetaTable)
	if err != nil {
		return nil, err
	}
	updated, err := store.OpenTable(PastesUpdatedTable)
	if err != nil {
		return nil, err
	}
	metaState, err := store.OpenTable(MetaStateTableName)
	if err != nil {
		return nil, err
	}
	return &PasteStore{
		store:     store,
		pastes:    pastes,
		meta:      meta,
		updated:   updated,
		metaState: metaState,
		detector:  detector,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log.WithComponent("store"),
	}, nil
}

// Store returns the underlying shared store handle.
func (s *PasteStore) Store() *kv.Store { return s.store }

// Create inserts the canonical row (failing if the id exists), then upserts
// the derived metadata and recency rows under a mutation guard.
func (s *PasteStore) Create(p *types.Paste) error {
	guard, err := s.beginMutation()
	if err != nil {
		return err
	}

	if err := s.pastes.Insert([]byte(p.ID), kv.EncodePaste(p)); err != nil {
		guard.finish()
		if errors.Is(err, types.ErrAlreadyExists) {
			return fmt.Errorf("paste %s: %w", p.ID, types.ErrAlreadyExists)
		}
		return err
	}

	guard.finishWithDerivedWrite(s.writeDerivedRows(p.Meta()))
	return nil
}

// Get reads the canonical row only, decoding with the legacy fallback.
// Returns nil when the paste does not exist.
func (s *PasteStore) Get(id string) (*types.Paste, error) {
	data, found, err := s.pastes.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return kv.DecodePasteWithFallback(data, s.detector)
}

// Update applies a partial update through a single-table read-modify-write,
// then refreshes the derived rows (dropping the stale recency key). Returns
// nil when the paste does not exist.
func (s *PasteStore) Update(id string, req *types.UpdatePasteRequest) (*types.Paste, error) {
	return s.updateMatching(id, req, nil)
}

// UpdateIfFolderMatches behaves like Update but aborts (returning nil, nil)
// when the paste's current folder differs from expectedFolderID. This is
// the compare-and-swap hook the transaction coordinator uses during moves.
func (s *PasteStore) UpdateIfFolderMatches(id, expectedFolderID string, req *types.UpdatePasteRequest) (*types.Paste, error) {
	return s.updateMatching(id, req, &expectedFolderID)
}

func (s *PasteStore) updateMatching(id string, req *types.UpdatePasteRequest, expectedFolder *string) (*types.Paste, error) {
	guard, err := s.beginMutation()
	if err != nil {
		return nil, err
	}

	var updated *types.Paste
	var previous *types.PasteMeta
	err = s.pastes.Update([]byte(id), func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, kv.ErrSkipUpdate
		}
		current, derr := kv.DecodePasteWithFallback(old, s.detector)
		if derr != nil {
			return nil, derr
		}
		if expectedFolder != nil && current.FolderID != *expectedFolder {
			return nil, kv.ErrSkipUpdate
		}
		previous = current.Meta()
		applyUpdateRequest(current, req, s.detector, s.now())
		updated = current
		return kv.EncodePaste(current), nil
	})
	if err != nil {
		guard.finish()
		return nil, err
	}
	if updated == nil {
		guard.finish()
		return nil, nil
	}

	derivedErr := s.replaceDerivedRows(previous, updated.Meta())
	guard.finishWithDerivedWrite(derivedErr)
	return updated, nil
}

// DeleteAndReturn removes the canonical row and, if it existed, the derived
// rows. Returns nil when the paste did not exist.
func (s *PasteStore) DeleteAndReturn(id string) (*types.Paste, error) {
	guard, err := s.beginMutation()
	if err != nil {
		return nil, err
	}

	prev, found, err := s.pastes.DeleteAndReturn([]byte(id))
	if err != nil {
		guard.finish()
		return nil, err
	}
	if !found {
		guard.finish()
		return nil, nil
	}

	removed, derr := kv.DecodePasteWithFallback(prev, s.detector)
	if derr != nil {
		// Canonical row is gone but we cannot locate its derived rows.
		guard.finishWithDerivedWrite(derr)
		return nil, derr
	}

	guard.finishWithDerivedWrite(s.removeDerivedRows(removed.Meta()))
	return removed, nil
}

// Delete removes a paste, reporting whether it existed.
func (s *PasteStore) Delete(id string) (bool, error) {
	removed, err := s.DeleteAndReturn(id)
	return removed != nil, err
}

func (s *PasteStore) writeDerivedRows(m *types.PasteMeta) error {
	if err := s.meta.Put([]byte(m.ID), kv.EncodePasteMeta(m)); err != nil {
		return err
	}
	return s.updated.Put(kv.EncodeRecencyKey(m.UpdatedAt, m.ID), []byte(m.ID))
}

func (s *PasteStore) removeDerivedRows(m *types.PasteMeta) error {
	if err := s.meta.Delete([]byte(m.ID)); err != nil {
		return err
	}
	return s.updated.Delete(kv.EncodeRecencyKey(m.UpdatedAt, m.ID))
}

func (s *PasteStore) replaceDerivedRows(previous, next *types.PasteMeta) error {
	if previous != nil {
		oldKey := kv.EncodeRecencyKey(previous.UpdatedAt, previous.ID)
		newKey := kv.EncodeRecencyKey(next.UpdatedAt, next.ID)
		if string(oldKey) != string(newKey) {
			if err := s.updated.Delete(oldKey); err != nil {
				return err
			}
		}
	}
	return s.writeDerivedRows(next)
}

// List scans canonical, filters, sorts by updated_at descending and
// truncates to limit.
func (s *PasteStore) List(limit int, folderFilter *string) ([]*types.Paste, error) {
	var result []*types.Paste
	err := s.pastes.ForEach(func(key, value []byte) error {
		p, derr := kv.DecodePasteWithFallback(value, s.detector)
		if derr != nil {
			return fmt.Errorf("paste %s: %w", string(key), derr)
		}
		if !folderMatches(p.FolderID, folderFilter) {
			return nil
		}
		result = append(result, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListMeta serves listing from the recency index joined to pastes_meta when
// the indexes are usable, skipping (and logging) anomalies by falling back
// to a canonical scan. With unusable indexes it serves a canonical top-K by
// recency using a bounded heap.
func (s *PasteStore) ListMeta(limit int, folderFilter *string) ([]*types.PasteMeta, error) {
	if !s.Usable() {
		s.logger.Warn().Msg("metadata indexes are dirty or unavailable; listing from canonical")
		return s.listMetaCanonical(limit, folderFilter)
	}

	var result []*types.PasteMeta
	seen := make(map[string]struct{})
	fallback := false
	err := s.updated.ForEach(func(key, value []byte) error {
		if limit > 0 && len(result) >= limit {
			return errStopIteration
		}
		id := string(value)
		if id == "" {
			var derr error
			id, derr = kv.DecodeRecencyKeyID(key)
			if derr != nil {
				fallback = true
				return errStopIteration
			}
		}
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}

		metaBytes, found, gerr := s.meta.Get([]byte(id))
		if gerr != nil {
			return gerr
		}
		if !found {
			s.logger.Warn().Str("paste_id", id).Msg("recency index has no metadata row; listing from canonical")
			fallback = true
			return errStopIteration
		}
		m, derr := kv.DecodePasteMeta(metaBytes)
		if derr != nil {
			s.logger.Warn().Str("paste_id", id).Msg("failed to decode metadata row; listing from canonical")
			fallback = true
			return errStopIteration
		}
		if m.ID != id {
			s.logger.Warn().Str("paste_id", id).Msg("metadata id mismatch; listing from canonical")
			fallback = true
			return errStopIteration
		}
		if _, exists, gerr := s.pastes.Get([]byte(id)); gerr != nil {
			return gerr
		} else if !exists {
			s.logger.Warn().Str("paste_id", id).Msg("metadata row has no canonical paste; listing from canonical")
			fallback = true
			return errStopIteration
		}
		if !folderMatches(m.FolderID, folderFilter) {
			return nil
		}
		result = append(result, m)
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	if fallback {
		return s.listMetaCanonical(limit, folderFilter)
	}
	return result, nil
}

var errStopIteration = errors.New("stop iteration")

// listMetaCanonical is the degraded-mode listing: canonical scan with a
// bounded top-K by recency.
func (s *PasteStore) listMetaCanonical(limit int, folderFilter *string) ([]*types.PasteMeta, error) {
	var top []ranked[*types.PasteMeta]
	err := s.pastes.ForEach(func(key, value []byte) error {
		p, derr := kv.DecodePasteWithFallback(value, s.detector)
		if derr != nil {
			return fmt.Errorf("paste %s: %w", string(key), derr)
		}
		if !folderMatches(p.FolderID, folderFilter) {
			return nil
		}
		top = pushRankedTopK(top, ranked[*types.PasteMeta]{updatedAt: p.UpdatedAt, item: p.Meta()}, effectiveLimit(limit))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalizeRanked(top), nil
}

// Search scans canonical, scoring name, tags and content, and keeps the
// top-K by (score desc, updated_at desc).
func (s *PasteStore) Search(query string, limit int, folderFilter, languageFilter *string) ([]*types.Paste, error) {
	queryLower := strings.ToLower(query)
	var top []ranked[*types.Paste]
	err := s.pastes.ForEach(func(key, value []byte) error {
		p, derr := kv.DecodePasteWithFallback(value, s.detector)
		if derr != nil {
			return fmt.Errorf("paste %s: %w", string(key), derr)
		}
		if !folderMatches(p.FolderID, folderFilter) || !languageMatches(p.Language, languageFilter) {
			return nil
		}
		score := scorePaste(p, queryLower)
		if score <= 0 {
			return nil
		}
		top = pushRankedTopK(top, ranked[*types.Paste]{score: score, updatedAt: p.UpdatedAt, item: p}, effectiveLimit(limit))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalizeRanked(top), nil
}

// SearchMeta searches metadata rows (name, tags, language only), skipping
// ghost rows whose canonical paste has vanished. With unusable indexes it
// searches canonical and projects.
func (s *PasteStore) SearchMeta(query string, limit int, folderFilter, languageFilter *string) ([]*types.PasteMeta, error) {
	if !s.Usable() {
		s.logger.Warn().Msg("metadata indexes are dirty or unavailable; searching via canonical")
		return s.searchMetaCanonical(query, limit, folderFilter, languageFilter)
	}

	queryLower := strings.ToLower(query)
	var top []ranked[*types.PasteMeta]
	fallback := false
	err := s.meta.ForEach(func(key, value []byte) error {
		m, derr := kv.DecodePasteMeta(value)
		if derr != nil {
			s.logger.Warn().Msg("failed to decode metadata row during search; falling back to canonical")
			fallback = true
			return errStopIteration
		}
		if !folderMatches(m.FolderID, folderFilter) || !languageMatches(m.Language, languageFilter) {
			return nil
		}
		score := scoreMeta(m, queryLower)
		if score <= 0 {
			return nil
		}
		if _, exists, gerr := s.pastes.Get([]byte(m.ID)); gerr != nil {
			return gerr
		} else if !exists {
			s.logger.Warn().Str("paste_id", m.ID).Msg("skipping ghost metadata row during search")
			return nil
		}
		top = pushRankedTopK(top, ranked[*types.PasteMeta]{score: score, updatedAt: m.UpdatedAt, item: m}, effectiveLimit(limit))
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	if fallback {
		return s.searchMetaCanonical(query, limit, folderFilter, languageFilter)
	}
	return finalizeRanked(top), nil
}

func (s *PasteStore) searchMetaCanonical(query string, limit int, folderFilter, languageFilter *string) ([]*types.PasteMeta, error) {
	pastes, err := s.Search(query, limit, folderFilter, languageFilter)
	if err != nil {
		return nil, err
	}
	metas := make([]*types.PasteMeta, 0, len(pastes))
	for _, p := range pastes {
		metas = append(metas, p.Meta())
	}
	return metas, nil
}

// effectiveLimit caps unbounded requests so a degraded canonical scan cannot
// balloon a response.
func effectiveLimit(limit int) int {
	const defaultLimit = 100
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

// CountCanonical returns the number of canonical pastes.
func (s *PasteStore) CountCanonical() (int, error) {
	return s.pastes.Len()
}

// ScanCanonicalMeta streams the metadata projection of every canonical
// paste; used by reconcile and the startup folder-count recount.
func (s *PasteStore) ScanCanonicalMeta(fn func(m *types.PasteMeta) error) error {
	return s.pastes.ForEach(func(key, value []byte) error {
		p, derr := kv.DecodePasteWithFallback(value, s.detector)
		if derr != nil {
			return fmt.Errorf("paste %s: %w", string(key), derr)
		}
		return fn(p.Meta())
	})
}
