package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/types"
)

// OwnerLockFileName is the canonical process owner lock inside the database
// directory. It is held for the whole process lifetime and is deliberately
// never removed by force-unlock.
const OwnerLockFileName = "db.owner.lock"

// OwnerLockPath returns the owner lock path for a database directory.
func OwnerLockPath(dbPath string) string {
	return filepath.Join(dbPath, OwnerLockFileName)
}

// OwnerLockGuard holds the exclusive owner lock for the process lifetime.
// Release is safe to call more than once.
type OwnerLockGuard struct {
	fl       *flock.Flock
	released bool
}

// Path returns the lock file path the guard holds.
func (g *OwnerLockGuard) Path() string { return g.fl.Path() }

// Release drops the lock. Failures are logged, not returned: the guard runs
// on shutdown paths where there is nothing useful left to do with an error.
func (g *OwnerLockGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	if err := g.fl.Unlock(); err != nil {
		logger := log.WithComponent("lock")
		logger.Warn().
			Err(err).
			Str("path", g.fl.Path()).
			Msg("failed to release owner lock")
	}
}

// AcquireOwnerLock opens (creating if missing) and exclusively locks the
// owner lock file, non-blocking. A held lock reports LockHeld; any other IO
// failure is reported with the path.
func AcquireOwnerLock(dbPath string) (*OwnerLockGuard, error) {
	path := OwnerLockPath(dbPath)
	if err := os.MkdirAll(dbPath, 0o700); err != nil {
		return nil, types.NewStorageError("create database directory", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("owner lock %s: %w", path, err)
	}
	if !locked {
		return nil, &types.LockError{Status: types.LockHeld, Path: path}
	}
	return &OwnerLockGuard{fl: fl}, nil
}

// ClassifyLockFailure turns an open-time "could not acquire lock" condition
// into the tri-valued user-facing error, consulting the owner-lock probe and
// the platform process probe.
func ClassifyLockFailure(dbPath string) *types.LockError {
	probe := ProbeOwnerLock(dbPath).Merge(ProcessProbe())
	switch probe {
	case ProbeRunning:
		return &types.LockError{
			Status: types.LockHeld,
			Path:   dbPath,
		}
	case ProbeUnknown:
		return &types.LockError{
			Status: types.LockUnknown,
			Path:   dbPath,
			Detail: "a lock file exists but no running instance could be confirmed or ruled out",
		}
	default:
		return &types.LockError{
			Status: types.LockRecoverable,
			Path:   dbPath,
			Detail: fmt.Sprintf("no running instance was found; run `localpaste force-unlock --db-path %s` to remove stale lock files", dbPath),
		}
	}
}
