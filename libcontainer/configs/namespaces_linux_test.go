package configs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNamespaceIsPrivate(t *testing.T) {
	require.True(t, Namespace{Type: NEWNET}.IsPrivate())
	require.False(t, Namespace{Type: NEWNET, Path: "/proc/1/ns/net"}.IsPrivate())
}

func TestNamespacesGetAndContains(t *testing.T) {
	ns := Namespaces{
		{Type: NEWPID},
		{Type: NEWNET, Path: "/proc/1/ns/net"},
	}
	require.True(t, ns.Contains(NEWPID))
	require.True(t, ns.Contains(NEWNET))
	require.False(t, ns.Contains(NEWUTS))

	got, ok := ns.Get(NEWNET)
	require.True(t, ok)
	require.Equal(t, "/proc/1/ns/net", got.Path)

	require.Equal(t, "/proc/1/ns/net", ns.PathOf(NEWNET))
	require.Equal(t, "", ns.PathOf(NEWUTS))
}

func TestCloneFlag(t *testing.T) {
	require.Equal(t, uintptr(unix.CLONE_NEWNET), NEWNET.CloneFlag())
	require.Equal(t, uintptr(unix.CLONE_NEWUSER), NEWUSER.CloneFlag())
}

func TestNamespaceOrderUserBeforePidBeforeMount(t *testing.T) {
	index := make(map[NamespaceType]int, len(NamespaceOrder))
	for i, t := range NamespaceOrder {
		index[t] = i
	}
	require.Less(t, index[NEWUSER], index[NEWPID])
	require.Less(t, index[NEWPID], index[NEWNS])
}
