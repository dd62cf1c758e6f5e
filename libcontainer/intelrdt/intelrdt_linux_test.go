package intelrdt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestNewNilConfigReturnsNilManager(t *testing.T) {
	require.Nil(t, New("abc", nil))
}

func TestNewDefaultsClosIDToContainerID(t *testing.T) {
	m := New("abc", &configs.IntelRdt{})
	require.Equal(t, filepath.Join(root, "abc"), m.Path())
}

func TestNewHonorsExplicitClosID(t *testing.T) {
	m := New("abc", &configs.IntelRdt{ClosID: "shared"})
	require.Equal(t, filepath.Join(root, "shared"), m.Path())
}

func TestNilManagerApplyAndDestroyAreNoop(t *testing.T) {
	var m *Manager
	require.NoError(t, m.Apply(123))
	require.NoError(t, m.Destroy())
}

func TestDestroyMissingGroupIsNotError(t *testing.T) {
	m := New("never-applied", &configs.IntelRdt{})
	require.NoError(t, m.Destroy())
}
