package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/types"
)

// LockManager performs guarded stale-lock cleanup for a database directory.
//
// The owner lock (db.owner.lock) is the canonical process lock and is never
// removed; only the legacy and store-internal lock files are candidates.
// Unknown lock files outside the known set are never touched.
type LockManager struct {
	dbPath string
}

// NewLockManager returns a manager for the given database directory.
func NewLockManager(dbPath string) *LockManager {
	return &LockManager{dbPath: dbPath}
}

// knownLockPaths lists every lock file force-unlock may remove, in a fixed
// order. db.owner.lock is deliberately absent.
func (m *LockManager) knownLockPaths() []string {
	return []string{
		filepath.Join(m.dbPath, "db.lock"),
		filepath.Join(m.dbPath, "db.tree.lock"),
		filepath.Join(m.dbPath, "localpaste.db.lock"),
		m.dbPath + ".lock",
	}
}

// ensureUnlockable verifies a lock file is not currently held by taking and
// releasing a non-blocking exclusive lock.
func ensureUnlockable(path string) error {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("probe lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock file %s appears to be held by a running process", path)
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("release probe lock %s: %w", path, err)
	}
	return nil
}

// ForceUnlock removes stale known lock files and returns how many were
// removed. The preflight is all-or-nothing: if any existing candidate is
// held, the whole operation aborts before any file is removed. A probe
// seeing another live writer also aborts.
func (m *LockManager) ForceUnlock() (int, error) {
	if probe := ProcessProbe(); probe == ProbeRunning {
		return 0, &types.LockError{
			Status: types.LockHeld,
			Path:   m.dbPath,
		}
	}

	var present []string
	for _, path := range m.knownLockPaths() {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, types.NewStorageError("stat lock file", err)
		}
		present = append(present, path)
	}

	// Preflight every candidate before removing anything.
	for _, path := range present {
		if err := ensureUnlockable(path); err != nil {
			return 0, err
		}
	}

	removed := 0
	logger := log.WithComponent("lock")
	for _, path := range present {
		if err := os.Remove(path); err != nil {
			return removed, types.NewStorageError("remove lock file", err)
		}
		logger.Info().Str("path", path).Msg("removed stale lock file")
		removed++
	}
	return removed, nil
}
