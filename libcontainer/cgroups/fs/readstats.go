package fs

import "github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"

func readStats(paths map[string]string) (*stats.Stats, error) {
	var s stats.Stats
	if mem, err := readMemoryStats(paths["memory"]); err == nil {
		s.Memory = mem
	}
	s.CPU = readCPUStats(paths["cpu"])
	s.Pids = readPidsStats(paths["pids"])
	return &s, nil
}
