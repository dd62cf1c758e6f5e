package fs

import (
	"fmt"
	"strconv"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func applyBlkio(dir string, res *configs.Resources) error {
	if res.BlkioWeight != 0 {
		if err := writeFile(dir, "blkio.weight", strconv.FormatUint(uint64(res.BlkioWeight), 10)); err != nil {
			return err
		}
	}
	if res.BlkioLeafWeight != 0 {
		if err := writeFile(dir, "blkio.leaf_weight", strconv.FormatUint(uint64(res.BlkioLeafWeight), 10)); err != nil {
			return err
		}
	}
	for _, d := range res.BlkioWeightDevice {
		if err := writeFile(dir, "blkio.weight_device", fmt.Sprintf("%d:%d %d", d.Major, d.Minor, d.Weight)); err != nil {
			return err
		}
	}
	throttles := []struct {
		file string
		devs []*configs.ThrottleDevice
	}{
		{"blkio.throttle.read_bps_device", res.BlkioThrottleReadBpsDevice},
		{"blkio.throttle.write_bps_device", res.BlkioThrottleWriteBpsDevice},
		{"blkio.throttle.read_iops_device", res.BlkioThrottleReadIOPSDevice},
		{"blkio.throttle.write_iops_device", res.BlkioThrottleWriteIOPSDevice},
	}
	for _, t := range throttles {
		for _, d := range t.devs {
			if err := writeFile(dir, t.file, fmt.Sprintf("%d:%d %d", d.Major, d.Minor, d.Rate)); err != nil {
				return err
			}
		}
	}
	return nil
}
