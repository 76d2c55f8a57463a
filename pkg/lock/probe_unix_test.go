//go:build !windows

package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePIDLines(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		currentPID int
		want       ProbeResult
	}{
		{
			name:       "empty output is not running",
			stdout:     "",
			currentPID: 100,
			want:       ProbeNotRunning,
		},
		{
			name:       "only current pid is ignored",
			stdout:     "100\n",
			currentPID: 100,
			want:       ProbeNotRunning,
		},
		{
			name:       "another pid means running",
			stdout:     "100\n2345\n",
			currentPID: 100,
			want:       ProbeRunning,
		},
		{
			name:       "garbage output is unknown",
			stdout:     "not-a-pid\n",
			currentPID: 100,
			want:       ProbeUnknown,
		},
		{
			name:       "garbage then other pid still means running",
			stdout:     "???\n2345\n",
			currentPID: 100,
			want:       ProbeRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePIDLines([]byte(tt.stdout), tt.currentPID)
			assert.Equal(t, tt.want, got)
		})
	}
}
