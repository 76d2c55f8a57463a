package lock

import (
	"os"

	"github.com/gofrs/flock"
)

// ProbeResult is the tri-state liveness classification. The open-time lock
// classification treats Unknown as unsafe; ForceUnlock aborts only on Running
// and otherwise relies on its per-file lock preflight.
type ProbeResult int

const (
	ProbeNotRunning ProbeResult = iota
	ProbeUnknown
	ProbeRunning
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeRunning:
		return "running"
	case ProbeUnknown:
		return "unknown"
	default:
		return "not-running"
	}
}

// Merge combines two probe observations per the rule
// Running > Unknown > NotRunning.
func (r ProbeResult) Merge(other ProbeResult) ProbeResult {
	if other > r {
		return other
	}
	return r
}

// Process names another live LocalPaste writer may run under. Exact-name
// matches cover the installed binaries; the command-line patterns cover
// tooling invoked via an interpreter.
var (
	probeExactNames   = []string{"localpaste", "localpaste-gui"}
	probeCmdlineNames = []string{"generate-test-data"}
)

// ProbeOwnerLock checks whether the owner lock is currently held by anyone.
// A missing file or a lockable-then-released file means NotRunning; a held
// lock means Running; anything else is Unknown.
func ProbeOwnerLock(dbPath string) ProbeResult {
	path := OwnerLockPath(dbPath)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ProbeNotRunning
		}
		return ProbeUnknown
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return ProbeUnknown
	}
	if !locked {
		return ProbeRunning
	}
	if err := fl.Unlock(); err != nil {
		return ProbeUnknown
	}
	return ProbeNotRunning
}
