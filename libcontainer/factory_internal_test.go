package libcontainer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitFieldsSingleSpace(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitFields("a b c"))
}

func TestSplitFieldsCollapsesRepeatedSpaces(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, splitFields("  a   b  "))
}

func TestSplitFieldsEmptyString(t *testing.T) {
	require.Nil(t, splitFields(""))
}

func TestProcessStartTimeOwnPid(t *testing.T) {
	v, err := processStartTime(os.Getpid())
	require.NoError(t, err)
	require.Greater(t, v, uint64(0))
}

func TestProcessStartTimeMissingPid(t *testing.T) {
	_, err := processStartTime(-1)
	require.Error(t, err)
}
