package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultStateRootNonRootPrefersXDG(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("requires a non-root euid")
	}
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	require.Equal(t, "/run/user/1000/crucible", defaultStateRoot())
}

func TestDefaultStateRootNonRootFallsBackToTmp(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("requires a non-root euid")
	}
	t.Setenv("XDG_RUNTIME_DIR", "")
	require.Equal(t, "/tmp/crucible", defaultStateRoot())
}
