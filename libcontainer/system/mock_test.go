package system

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockRecordsCallsInOrder(t *testing.T) {
	m := &Mock{}
	require.NoError(t, m.Unshare(0x20000))
	require.NoError(t, m.SetHostname("box"))
	require.NoError(t, m.CloseRange(3, 7))

	require.Equal(t, []string{
		"unshare(131072)",
		"sethostname(box)",
		"close_range(3, preserve=[7])",
	}, m.Calls)
	require.Equal(t, "box", m.Hostname)
}

func TestMockFailOnReturnsConfiguredError(t *testing.T) {
	boom := errors.New("boom")
	m := &Mock{FailOn: map[string]error{"chroot(/new)": boom}}

	err := m.Chroot("/new")
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"chroot(/new)"}, m.Calls)
}

func TestMockSetGroupsRecordsGids(t *testing.T) {
	m := &Mock{}
	require.NoError(t, m.SetGroups([]int{1, 2, 3}))
	require.Equal(t, []int{1, 2, 3}, m.Groups)
}
