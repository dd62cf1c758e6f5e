package fs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestApplyBlkioWeightAndLeafWeight(t *testing.T) {
	dir := t.TempDir()
	res := &configs.Resources{BlkioWeight: 500, BlkioLeafWeight: 100}
	require.NoError(t, applyBlkio(dir, res))

	w, err := readFile(dir, "blkio.weight")
	require.NoError(t, err)
	require.Equal(t, "500", w)

	lw, err := readFile(dir, "blkio.leaf_weight")
	require.NoError(t, err)
	require.Equal(t, "100", lw)
}

func TestApplyBlkioNoWeightsIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyBlkio(dir, &configs.Resources{}))
	_, err := readFile(dir, "blkio.weight")
	require.Error(t, err)
}

func TestApplyBlkioThrottleDevices(t *testing.T) {
	dir := t.TempDir()
	res := &configs.Resources{
		BlkioThrottleReadBpsDevice: []*configs.ThrottleDevice{
			{Major: 8, Minor: 0, Rate: 1048576},
		},
	}
	require.NoError(t, applyBlkio(dir, res))

	v, err := readFile(dir, "blkio.throttle.read_bps_device")
	require.NoError(t, err)
	require.Equal(t, "8:0 1048576", v)
}
