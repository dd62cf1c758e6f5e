package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathsJoinsRootAndSubsystem(t *testing.T) {
	old := Root
	Root = "/sys/fs/cgroup"
	defer func() { Root = old }()

	paths := Paths("mycontainer")
	require.Equal(t, filepath.Join(Root, "memory", "mycontainer"), paths["memory"])
	require.Equal(t, filepath.Join(Root, "cpu", "mycontainer"), paths["cpu"])
	require.Len(t, paths, len(subsystems))
}

func TestWriteReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir, "foo", "bar"))
	v, err := readFile(dir, "foo")
	require.NoError(t, err)
	require.Equal(t, "bar", v)
}

func TestReadFileMissingReturnsError(t *testing.T) {
	_, err := readFile(t.TempDir(), "missing")
	require.Error(t, err)
}

func TestMkdirAllCreatesNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, mkdirAll(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestWritePidFallsBackToTasks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writePid(dir, 42))
	v, err := readFile(dir, "tasks")
	require.NoError(t, err)
	require.Equal(t, "42", v)
}

func TestWritePidPrefersCgroupProcs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup.procs"), nil, 0o644))
	require.NoError(t, writePid(dir, 7))
	v, err := readFile(dir, "cgroup.procs")
	require.NoError(t, err)
	require.Equal(t, "7", v)

	_, err = readFile(dir, "tasks")
	require.Error(t, err)
}

func TestReadPidsParsesLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup.procs"), []byte("1\n2\n3\n"), 0o644))
	pids, err := readPids(dir)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, pids)
}

func TestReadPidsMissingFile(t *testing.T) {
	_, err := readPids(t.TempDir())
	require.Error(t, err)
}
