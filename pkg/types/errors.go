package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds shared across the store, the
// coordinator, and the HTTP layer. Wrap with fmt.Errorf("...: %w", ...) and
// test with errors.Is.
var (
	// ErrNotFound reports that a named entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest reports a validation failure (cycle, unknown parent,
	// invalid payload).
	ErrBadRequest = errors.New("bad request")

	// ErrLocked reports that a paste is held open by the GUI and cannot be
	// mutated through the HTTP API.
	ErrLocked = errors.New("paste is locked by the editor")

	// ErrConflict reports that the move-retry cap was reached; the caller
	// should retry.
	ErrConflict = errors.New("conflicting concurrent update; retry")

	// ErrSerialization reports that a stored value failed to decode under
	// both the current and the legacy schema.
	ErrSerialization = errors.New("stored value could not be decoded")

	// ErrAlreadyExists reports a create against an id that is present.
	ErrAlreadyExists = errors.New("already exists")
)

// StorageError carries a low-level storage or IO failure description.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("storage: %v", e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with the failing operation name.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// LockStatus classifies an open-time lock failure.
type LockStatus string

const (
	// LockHeld means another live writer holds the lock.
	LockHeld LockStatus = "held"
	// LockUnknown means ownership could not be verified; recovery actions
	// are unsafe.
	LockUnknown LockStatus = "unknown"
	// LockRecoverable means no writer appears alive and stale-lock recovery
	// is safe.
	LockRecoverable LockStatus = "recoverable"
)

// LockError is the tri-valued open-time lock failure.
type LockError struct {
	Status LockStatus
	Path   string
	Detail string
}

func (e *LockError) Error() string {
	switch e.Status {
	case LockHeld:
		return fmt.Sprintf("database at %s is already in use by another running instance", e.Path)
	case LockUnknown:
		return fmt.Sprintf("database at %s appears locked and ownership could not be verified; do not force-unlock: %s", e.Path, e.Detail)
	default:
		return fmt.Sprintf("database at %s holds a stale lock; %s", e.Path, e.Detail)
	}
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
