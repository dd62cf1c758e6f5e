package capabilities

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

func TestDropOrdersBoundingFirst(t *testing.T) {
	m := &system.Mock{}
	cfg := &configs.Capabilities{
		Bounding:  []string{"CAP_KILL"},
		Effective: []string{"CAP_KILL"},
	}
	require.NoError(t, Drop(m, cfg))
	require.Equal(t, []string{
		"setcap(3,[CAP_KILL])",
		"setcap(0,[CAP_KILL])",
		"setcap(1,[])",
		"setcap(2,[])",
		"setcap(4,[])",
	}, m.Calls)
}

func TestDropNilConfigInstallsEmptySets(t *testing.T) {
	m := &system.Mock{}
	require.NoError(t, Drop(m, nil))
	require.Len(t, m.Calls, 5)
}

func TestValidateAcceptsKnownCapabilities(t *testing.T) {
	cfg := &configs.Capabilities{Bounding: []string{"CAP_KILL", "CAP_NET_BIND_SERVICE"}}
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsUnknownCapability(t *testing.T) {
	cfg := &configs.Capabilities{Bounding: []string{"CAP_NOT_REAL"}}
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "CAP_NOT_REAL")
}

func TestValidateNilIsNoop(t *testing.T) {
	require.NoError(t, Validate(nil))
}
