package fs

import (
	"strconv"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func applyPids(dir string, res *configs.Resources) error {
	if res.PidsLimit == 0 {
		return nil
	}
	v := "max"
	if res.PidsLimit > 0 {
		v = strconv.FormatInt(res.PidsLimit, 10)
	}
	return writeFile(dir, "pids.max", v)
}

func readPidsStats(dir string) stats.PidsStats {
	var ps stats.PidsStats
	if s, err := readFile(dir, "pids.current"); err == nil {
		ps.Current, _ = strconv.ParseUint(s, 10, 64)
	}
	if s, err := readFile(dir, "pids.max"); err == nil && s != "max" {
		ps.Limit, _ = strconv.ParseUint(s, 10, 64)
	}
	return ps
}
