package hostmode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Detect reads the real host's /sys/fs/cgroup layout and isn't
// deterministic across environments, so it's exercised indirectly by
// the systemd/fs2 backends rather than unit-tested directly here.
func TestModeConstantsAreDistinct(t *testing.T) {
	modes := []Mode{Unknown, V1, V2, Hybrid}
	seen := make(map[Mode]bool, len(modes))
	for _, m := range modes {
		require.False(t, seen[m])
		seen[m] = true
	}
}

func TestUnknownIsZeroValue(t *testing.T) {
	var m Mode
	require.Equal(t, Unknown, m)
}
