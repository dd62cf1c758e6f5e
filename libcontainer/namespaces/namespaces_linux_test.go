package namespaces

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

func TestJoinFlagsOnlyPrivateEntries(t *testing.T) {
	ns := configs.Namespaces{
		{Type: configs.NEWPID},
		{Type: configs.NEWNET, Path: "/proc/1/ns/net"},
		{Type: configs.NEWUTS},
	}
	flags := JoinFlags(ns)
	require.Equal(t, uintptr(unix.CLONE_NEWPID|unix.CLONE_NEWUTS), flags)
}

func TestUnshareNoopWhenNothingPrivate(t *testing.T) {
	m := &system.Mock{}
	ns := configs.Namespaces{{Type: configs.NEWNET, Path: "/proc/1/ns/net"}}
	require.NoError(t, Unshare(m, ns))
	require.Empty(t, m.Calls)
}

func TestUnshareCallsSurfaceWithCombinedFlags(t *testing.T) {
	m := &system.Mock{}
	ns := configs.Namespaces{{Type: configs.NEWUTS}, {Type: configs.NEWIPC}}
	require.NoError(t, Unshare(m, ns))
	require.Len(t, m.Calls, 1)
}

func TestApplyUTSSkipsJoinedNamespace(t *testing.T) {
	m := &system.Mock{}
	ns := configs.Namespaces{{Type: configs.NEWUTS, Path: "/proc/1/ns/uts"}}
	require.NoError(t, ApplyUTS(m, ns, "myhost", "mydomain"))
	require.Empty(t, m.Calls)
}

func TestApplyUTSSetsHostnameAndDomain(t *testing.T) {
	m := &system.Mock{}
	ns := configs.Namespaces{{Type: configs.NEWUTS}}
	require.NoError(t, ApplyUTS(m, ns, "myhost", "mydomain"))
	require.Equal(t, "myhost", m.Hostname)
	require.Equal(t, "mydomain", m.Domain)
}

func TestEnterPathsSkipsPrivateEntries(t *testing.T) {
	m := &system.Mock{}
	ns := configs.Namespaces{{Type: configs.NEWPID}}
	require.NoError(t, EnterPaths(m, ns))
	require.Empty(t, m.Calls)
}
