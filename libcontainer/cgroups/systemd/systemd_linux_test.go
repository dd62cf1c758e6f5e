package systemd

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestUnitNameForAddsScopePrefixAndSuffix(t *testing.T) {
	require.Equal(t, "crucible-abc.scope", unitNameFor(&configs.Cgroup{Name: "abc", ScopePrefix: "crucible"}))
}

func TestUnitNameForNoPrefix(t *testing.T) {
	require.Equal(t, "abc.scope", unitNameFor(&configs.Cgroup{Name: "abc"}))
}

func TestUnitNameForAlreadySuffixed(t *testing.T) {
	require.Equal(t, "abc.scope", unitNameFor(&configs.Cgroup{Name: "abc.scope"}))
}

func TestSliceForDefaultsToSystemSlice(t *testing.T) {
	require.Equal(t, "system.slice", sliceFor(""))
}

func TestSliceForAppendsSliceSuffix(t *testing.T) {
	require.Equal(t, "machine.slice", sliceFor("machine.slice"))
	require.Equal(t, "machine.slice", sliceFor("machine"))
}

func TestNewPropertyWrapsVariant(t *testing.T) {
	p := newProperty("Delegate", true)
	require.Equal(t, "Delegate", p.Name)
	require.Equal(t, dbus.MakeVariant(true), p.Value)
}
