package fs

import (
	"strconv"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func applyCPU(dir string, res *configs.Resources) error {
	if res.CPUShares != 0 {
		if err := writeFile(dir, "cpu.shares", strconv.FormatUint(res.CPUShares, 10)); err != nil {
			return err
		}
	}
	if res.CPUQuota != 0 {
		if err := writeFile(dir, "cpu.cfs_quota_us", strconv.FormatInt(res.CPUQuota, 10)); err != nil {
			return err
		}
	}
	if res.CPUPeriod != 0 {
		if err := writeFile(dir, "cpu.cfs_period_us", strconv.FormatUint(res.CPUPeriod, 10)); err != nil {
			return err
		}
	}
	if res.CPURtRuntime != 0 {
		if err := writeFile(dir, "cpu.rt_runtime_us", strconv.FormatInt(res.CPURtRuntime, 10)); err != nil {
			return err
		}
	}
	if res.CPURtPeriod != 0 {
		if err := writeFile(dir, "cpu.rt_period_us", strconv.FormatUint(res.CPURtPeriod, 10)); err != nil {
			return err
		}
	}
	return nil
}

func applyCpuset(dir string, res *configs.Resources) error {
	if res.CpusetCpus != "" {
		if err := writeFile(dir, "cpuset.cpus", res.CpusetCpus); err != nil {
			return err
		}
	}
	if res.CpusetMems != "" {
		if err := writeFile(dir, "cpuset.mems", res.CpusetMems); err != nil {
			return err
		}
	}
	return nil
}

func readCPUStats(dir string) stats.CPUStats {
	var cs stats.CPUStats
	if s, err := readFile(dir, "cpuacct.usage"); err == nil {
		if v, err := strconv.ParseUint(s, 10, 64); err == nil {
			cs.UsageUsec = v / 1000
		}
	}
	return cs
}
