package process

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestEncodeDecodeBootstrapRoundTrip(t *testing.T) {
	args := &Args{
		ContainerID: "abc123",
		Config:      &configs.Config{Rootfs: "/var/lib/crucible/abc123/rootfs"},
		PidFile:     "/run/abc123.pid",
		StateDir:    "/run/crucible/abc123",
	}
	payload, err := encodeBootstrap(args)
	require.NoError(t, err)

	decoded, err := decodeBootstrap(payload)
	require.NoError(t, err)
	require.Equal(t, "abc123", decoded.ContainerID)
	require.Equal(t, "/run/abc123.pid", decoded.PidFile)
	require.Equal(t, "/run/crucible/abc123", decoded.StateDir)
	require.Equal(t, "/var/lib/crucible/abc123/rootfs", decoded.Config.Rootfs)
}

func TestDecodeBootstrapInvalidJSON(t *testing.T) {
	_, err := decodeBootstrap("not json")
	require.Error(t, err)
}
