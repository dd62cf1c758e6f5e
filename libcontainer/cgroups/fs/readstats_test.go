package fs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadStatsAggregatesAcrossSubsystems(t *testing.T) {
	memDir := t.TempDir()
	seedMemoryFile(t, memDir, "memory.usage_in_bytes", "1000")
	seedMemoryFile(t, memDir, "memory.limit_in_bytes", "2000")

	cpuDir := t.TempDir()
	seedMemoryFile(t, cpuDir, "cpuacct.usage", "3000000")

	pidsDir := t.TempDir()
	seedMemoryFile(t, pidsDir, "pids.current", "4")
	seedMemoryFile(t, pidsDir, "pids.max", "10")

	s, err := readStats(map[string]string{"memory": memDir, "cpu": cpuDir, "pids": pidsDir})
	require.NoError(t, err)
	require.Equal(t, uint64(1000), s.Memory.Usage.Usage)
	require.Equal(t, uint64(3000), s.CPU.UsageUsec)
	require.Equal(t, uint64(4), s.Pids.Current)
	require.Equal(t, uint64(10), s.Pids.Limit)
}
