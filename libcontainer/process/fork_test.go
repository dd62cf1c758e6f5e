package process

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrepareExecBuildsNulTerminatedArrays(t *testing.T) {
	exec, err := prepareExec([]string{"/bin/crucible", "__crucible-init"}, []string{"FOO=bar"})
	require.NoError(t, err)

	require.NotNil(t, exec.path)
	require.Equal(t, byte('/'), *exec.path)

	require.Len(t, exec.argv, 3)
	require.Nil(t, exec.argv[2])
	require.Equal(t, byte('/'), *exec.argv[0])

	require.Len(t, exec.envv, 2)
	require.Nil(t, exec.envv[1])
	require.Equal(t, byte('F'), *exec.envv[0])
}

func TestPrepareExecRejectsEmbeddedNul(t *testing.T) {
	_, err := prepareExec([]string{"bad\x00arg"}, nil)
	require.Error(t, err)
}

func TestPrepareExecEmptyEnvStillNulTerminated(t *testing.T) {
	exec, err := prepareExec([]string{"/bin/true"}, nil)
	require.NoError(t, err)
	require.Len(t, exec.envv, 1)
	require.Nil(t, exec.envv[0])
}
