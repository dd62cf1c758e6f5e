package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func seedMemoryFile(t *testing.T, dir, name, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644))
}

func TestApplyMemoryNoLimitsIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyMemory(dir, &configs.Resources{}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestApplyMemoryRaisingBothWritesSwapFirst(t *testing.T) {
	dir := t.TempDir()
	seedMemoryFile(t, dir, "memory.limit_in_bytes", "1000")
	seedMemoryFile(t, dir, "memory.memsw.limit_in_bytes", "1000")

	res := &configs.Resources{Memory: 2000, MemorySwap: 3000}
	require.NoError(t, applyMemory(dir, res))

	swap, err := readMemoryLimit(dir, "memory.memsw.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, int64(3000), swap)

	mem, err := readMemoryLimit(dir, "memory.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, int64(2000), mem)
}

func TestApplyMemoryRaisingWithUnlimitedSwapWritesSwapFirst(t *testing.T) {
	dir := t.TempDir()
	seedMemoryFile(t, dir, "memory.limit_in_bytes", "1000")
	seedMemoryFile(t, dir, "memory.memsw.limit_in_bytes", "1000")

	// memory.limit_in_bytes rejects a value above the current swap
	// limit; unlimited swap (-1) must still be written first, even
	// though it's never ">" the current swap limit numerically.
	res := &configs.Resources{Memory: 5000, MemorySwap: -1}
	require.NoError(t, applyMemory(dir, res))

	swap, err := readMemoryLimit(dir, "memory.memsw.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, int64(-1), swap)

	mem, err := readMemoryLimit(dir, "memory.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, int64(5000), mem)
}

func TestApplyMemoryRaisingAlsoAppliesReservation(t *testing.T) {
	dir := t.TempDir()
	seedMemoryFile(t, dir, "memory.limit_in_bytes", "1000")
	seedMemoryFile(t, dir, "memory.memsw.limit_in_bytes", "1000")

	res := &configs.Resources{Memory: 2000, MemorySwap: 3000, MemoryReservation: 1500}
	require.NoError(t, applyMemory(dir, res))

	soft, err := readMemoryLimit(dir, "memory.soft_limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, int64(1500), soft)
}

func TestApplyMemoryOnlyMemoryLimit(t *testing.T) {
	dir := t.TempDir()
	res := &configs.Resources{Memory: 4096}
	require.NoError(t, applyMemory(dir, res))

	mem, err := readMemoryLimit(dir, "memory.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, int64(4096), mem)
}

func TestUsageFileDerivation(t *testing.T) {
	require.Equal(t, "memory.usage_in_bytes", usageFile("memory.limit_in_bytes"))
	require.Equal(t, "memory.max_usage_in_bytes", peakUsageFile("memory.limit_in_bytes"))
	require.Equal(t, "memory.memsw.usage_in_bytes", usageFile("memory.memsw.limit_in_bytes"))
	require.Equal(t, "memory.memsw.max_usage_in_bytes", peakUsageFile("memory.memsw.limit_in_bytes"))
}

func TestSetMemoryLimitEnrichesNonEBUSYErrorWithoutUsage(t *testing.T) {
	dir := t.TempDir()
	// No cgroup directory exists at all, so the write fails with
	// ENOENT, not EBUSY - the error should stay plain, with no usage
	// readback appended.
	err := setMemoryLimit(filepath.Join(dir, "missing"), "memory.limit_in_bytes", 1000)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "usage=")
}

func TestReadMemoryData(t *testing.T) {
	dir := t.TempDir()
	seedMemoryFile(t, dir, "memory.usage_in_bytes", "100")
	seedMemoryFile(t, dir, "memory.max_usage_in_bytes", "200")
	seedMemoryFile(t, dir, "memory.failcnt", "3")
	seedMemoryFile(t, dir, "memory.limit_in_bytes", "9999")

	md := readMemoryData(dir, "memory.usage_in_bytes", "memory.max_usage_in_bytes", "memory.failcnt", "memory.limit_in_bytes")
	require.Equal(t, uint64(100), md.Usage)
	require.Equal(t, uint64(200), md.MaxUsage)
	require.Equal(t, uint64(3), md.Failcnt)
	require.Equal(t, uint64(9999), md.Limit)
}

func TestReadMemoryDataMissingFilesDefaultZero(t *testing.T) {
	dir := t.TempDir()
	md := readMemoryData(dir, "missing.usage", "missing.max", "missing.fail", "missing.limit")
	require.Equal(t, uint64(0), md.Usage)
}
