package userns

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestValidateRejectsMissingMaps(t *testing.T) {
	err := Validate(nil, []configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}})
	require.Error(t, err)

	err = Validate([]configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}}, nil)
	require.Error(t, err)
}

func TestValidateRejectsMappingNotCoveringZero(t *testing.T) {
	err := Validate(
		[]configs.IDMap{{ContainerID: 1, HostID: 100000, Size: 65536}},
		[]configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "uid mapping")
}

func TestValidateAcceptsZeroCoveringMapping(t *testing.T) {
	err := Validate(
		[]configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}},
		[]configs.IDMap{{ContainerID: 0, HostID: 100000, Size: 65536}},
	)
	require.NoError(t, err)
}

func TestCoversZeroWithMultipleExtents(t *testing.T) {
	maps := []configs.IDMap{
		{ContainerID: 1000, HostID: 1000, Size: 1},
		{ContainerID: -5, HostID: 200000, Size: 10},
	}
	require.True(t, coversZero(maps))
}

func TestFormatMap(t *testing.T) {
	maps := []configs.IDMap{
		{ContainerID: 0, HostID: 100000, Size: 65536},
		{ContainerID: 1000, HostID: 1000, Size: 1},
	}
	require.Equal(t, "0 100000 65536\n1000 1000 1\n", formatMap(maps))
}
