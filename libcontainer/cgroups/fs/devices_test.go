package fs

import (
	"testing"

	"github.com/stretchr/testify/require"
	devices "github.com/opencontainers/cgroups/devices/config"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestApplyDevicesAlwaysDeniesAllFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyDevices(dir, &configs.Resources{}))

	v, err := readFile(dir, "devices.deny")
	require.NoError(t, err)
	require.Equal(t, "a", v)
}

func TestApplyDevicesRoutesAllowVsDeny(t *testing.T) {
	dir := t.TempDir()
	res := &configs.Resources{
		Devices: []*devices.Rule{
			{Type: devices.CharDevice, Major: 1, Minor: 5, Permissions: "rwm", Allow: true},
		},
	}
	require.NoError(t, applyDevices(dir, res))

	v, err := readFile(dir, "devices.allow")
	require.NoError(t, err)
	require.Equal(t, "c 1:5 rwm", v)
}

func TestDeviceRuleLineWildcards(t *testing.T) {
	r := &devices.Rule{Type: devices.WildcardDevice, Major: -1, Minor: -1, Permissions: "rwm"}
	require.Equal(t, "a *:* rwm", deviceRuleLine(r))
}
