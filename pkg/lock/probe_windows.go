//go:build windows

package lock

import (
	"encoding/csv"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ProcessProbe asks the OS whether another LocalPaste writer is alive.
// On Windows this parses `tasklist /FO CSV`. Missing tooling degrades to
// Unknown, never to NotRunning.
func ProcessProbe() ProbeResult {
	out, err := exec.Command("tasklist", "/FO", "CSV", "/NH").Output()
	if err != nil {
		// Missing tasklist and execution failures alike leave liveness
		// undecidable.
		return ProbeUnknown
	}
	return parseTasklistCSV(string(out), os.Getpid())
}

// parseTasklistCSV scans tasklist CSV rows for the known writer image names,
// ignoring our own PID. Unparseable rows degrade the result to Unknown.
func parseTasklistCSV(output string, currentPID int) ProbeResult {
	result := ProbeNotRunning
	reader := csv.NewReader(strings.NewReader(output))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return ProbeUnknown
	}
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		image := strings.ToLower(strings.TrimSuffix(record[0], ".exe"))
		known := false
		for _, name := range probeExactNames {
			if image == name {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			result = result.Merge(ProbeUnknown)
			continue
		}
		if pid == currentPID {
			continue
		}
		return ProbeRunning
	}
	return result
}
