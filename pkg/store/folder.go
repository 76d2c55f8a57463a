package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/pkg/kv"
	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/types"
)

// Table names owned by the folder store.
const (
	FoldersTableName         = "folders"
	FoldersDeletingTableName = "folders_deleting"
)

// FolderStore provides folder CRUD, the materialized paste_count field, and
// the delete-marker table used by the folder-tree delete flow.
type FolderStore struct {
	folders  *kv.Table
	deleting *kv.Table
	now      func() time.Time
	logger   zerolog.Logger
}

// NewFolderStore opens the folder tables on a shared store.
func NewFolderStore(store *kv.Store) (*FolderStore, error) {
	folders, err := store.OpenTable(FoldersTableName)
	if err != nil {
		return nil, err
	}
	deleting, err := store.OpenTable(FoldersDeletingTableName)
	if err != nil {
		return nil, err
	}
	return &FolderStore{
		folders:  folders,
		deleting: deleting,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.WithComponent("folders"),
	}, nil
}

// Create inserts a new folder. The name must be non-empty; parent existence
// and cycle checks belong to the transaction coordinator.
func (s *FolderStore) Create(f *types.Folder) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("folder name must not be empty: %w", types.ErrBadRequest)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	return s.folders.Insert([]byte(f.ID), kv.EncodeFolder(f))
}

// Get returns a folder or ErrNotFound.
func (s *FolderStore) Get(id string) (*types.Folder, error) {
	data, found, err := s.folders.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("folder %s: %w", id, types.ErrNotFound)
	}
	return kv.DecodeFolder(data)
}

// List returns all folders sorted by name.
func (s *FolderStore) List() ([]*types.Folder, error) {
	var folders []*types.Folder
	err := s.folders.ForEach(func(key, value []byte) error {
		f, derr := kv.DecodeFolder(value)
		if derr != nil {
			return fmt.Errorf("folder %s: %w", string(key), derr)
		}
		folders = append(folders, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})
	return folders, nil
}

// Update renames and/or re-parents a folder. parentID nil leaves the parent
// untouched; the empty string moves the folder to the root.
func (s *FolderStore) Update(id, name string, parentID *string) (*types.Folder, error) {
	var updated *types.Folder
	err := s.folders.Update([]byte(id), func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, fmt.Errorf("folder %s: %w", id, types.ErrNotFound)
		}
		f, derr := kv.DecodeFolder(old)
		if derr != nil {
			return nil, derr
		}
		if strings.TrimSpace(name) != "" {
			f.Name = name
		}
		if parentID != nil {
			f.ParentID = strings.TrimSpace(*parentID)
		}
		updated = f
		return kv.EncodeFolder(f), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a folder row. Deleting an absent folder is not an error.
func (s *FolderStore) Delete(id string) error {
	return s.folders.Delete([]byte(id))
}

// UpdateCount atomically adjusts paste_count by delta, saturating at zero.
// This is the sole incremental mutator of the counter and is called only
// from the transaction coordinator; SetCount overwrites the counter during
// the startup recount.
func (s *FolderStore) UpdateCount(id string, delta int) error {
	return s.folders.Update([]byte(id), func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, fmt.Errorf("folder %s: %w", id, types.ErrNotFound)
		}
		f, derr := kv.DecodeFolder(old)
		if derr != nil {
			return nil, derr
		}
		count := f.PasteCount + delta
		if count < 0 {
			count = 0
		}
		f.PasteCount = count
		return kv.EncodeFolder(f), nil
	})
}

// SetCount overwrites paste_count; used by the startup recount that heals
// counters after a crash mid-flow.
func (s *FolderStore) SetCount(id string, count int) error {
	if count < 0 {
		count = 0
	}
	return s.folders.Update([]byte(id), func(old []byte) ([]byte, error) {
		if old == nil {
			return nil, fmt.Errorf("folder %s: %w", id, types.ErrNotFound)
		}
		f, derr := kv.DecodeFolder(old)
		if derr != nil {
			return nil, derr
		}
		f.PasteCount = count
		return kv.EncodeFolder(f), nil
	})
}

// MarkDeleting records delete markers for a folder subtree before it is
// drained, so concurrent creates refuse to bind pastes to dying folders.
func (s *FolderStore) MarkDeleting(ids []string) error {
	for _, id := range ids {
		if err := s.deleting.Put([]byte(id), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// UnmarkDeleting drops a single delete marker.
func (s *FolderStore) UnmarkDeleting(id string) error {
	return s.deleting.Delete([]byte(id))
}

// IsDeleteMarked reports whether a folder is inside an in-flight tree
// delete.
func (s *FolderStore) IsDeleteMarked(id string) (bool, error) {
	_, found, err := s.deleting.Get([]byte(id))
	return found, err
}

// ClearDeleteMarkers empties the marker table. Called once at startup: an
// interrupted tree delete is treated as abandoned — its surviving folders
// become visible and deletable again, and the startup recount heals their
// counters.
func (s *FolderStore) ClearDeleteMarkers() error {
	return s.deleting.Clear()
}
