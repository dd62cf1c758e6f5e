package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSpecRootIsReadonly(t *testing.T) {
	spec := defaultSpec(false)
	require.True(t, spec.Root.Readonly)
	require.Equal(t, "rootfs", spec.Root.Path)
}

func TestDefaultSpecRootlessAddsUserNamespace(t *testing.T) {
	spec := defaultSpec(true)
	found := false
	for _, ns := range spec.Linux.Namespaces {
		if ns.Type == "user" {
			found = true
		}
	}
	require.True(t, found)
	require.Len(t, spec.Linux.UIDMappings, 1)
}

func TestDefaultSpecNonRootlessHasNoUserMappings(t *testing.T) {
	spec := defaultSpec(false)
	require.Empty(t, spec.Linux.UIDMappings)
	for _, ns := range spec.Linux.Namespaces {
		require.NotEqual(t, "user", string(ns.Type))
	}
}

func TestDefaultMountsIncludesProcAndSys(t *testing.T) {
	mounts := defaultMounts()
	dests := make(map[string]bool, len(mounts))
	for _, m := range mounts {
		dests[m.Destination] = true
	}
	require.True(t, dests["/proc"])
	require.True(t, dests["/sys"])
	require.True(t, dests["/dev"])
}
