package libcontainer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestStatusString(t *testing.T) {
	require.Equal(t, "created", Created.String())
	require.Equal(t, "running", Running.String())
	require.Equal(t, "paused", Paused.String())
	require.Equal(t, "stopped", Stopped.String())
	require.Equal(t, "unknown", Status(99).String())
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := &State{
		ID:             "abc",
		Bundle:         "/bundles/abc",
		Config:         &configs.Config{Rootfs: "/rootfs"},
		Created:        time.Now().UTC().Truncate(time.Second),
		InitProcessPid: 1234,
		Started:        true,
	}
	require.NoError(t, saveState(dir, st))

	got, err := loadState(dir)
	require.NoError(t, err)
	require.Equal(t, st.ID, got.ID)
	require.Equal(t, st.Bundle, got.Bundle)
	require.Equal(t, st.InitProcessPid, got.InitProcessPid)
	require.True(t, got.Started)
	require.Equal(t, "/rootfs", got.Config.Rootfs)
}

func TestSaveStateOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	st := &State{ID: "a", Started: false}
	require.NoError(t, saveState(dir, st))

	st.Started = true
	require.NoError(t, saveState(dir, st))

	got, err := loadState(dir)
	require.NoError(t, err)
	require.True(t, got.Started)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	_, err := loadState(t.TempDir())
	require.Error(t, err)
}

func TestListStateDirsReturnsOnlyDirsWithState(t *testing.T) {
	root := t.TempDir()
	has := filepath.Join(root, "has-state")
	require.NoError(t, os.MkdirAll(has, 0o755))
	require.NoError(t, saveState(has, &State{ID: "has-state"}))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-state"), 0o755))

	ids, err := listStateDirs(root)
	require.NoError(t, err)
	require.Equal(t, []string{"has-state"}, ids)
}

func TestListStateDirsMissingRoot(t *testing.T) {
	ids, err := listStateDirs(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Nil(t, ids)
}
