// Package hostmode detects which cgroup API the running kernel
// exposes. Split out from package cgroups so backend packages (fs2,
// systemd) can depend on the Mode type without importing back into
// the package that imports them.
package hostmode

import "os"

// Mode identifies which hierarchy layout the host kernel exposes.
type Mode int

const (
	Unknown Mode = iota
	V1
	V2
	Hybrid // v2 mounted alongside a v1 hierarchy (systemd hybrid mode)
)

// Mountpoint is where a v2 (or hybrid) host always mounts the unified
// hierarchy.
const Mountpoint = "/sys/fs/cgroup"

// Detect inspects /sys/fs/cgroup to determine which cgroup API the
// host kernel exposes. A v1 host has per-subsystem directories
// (/sys/fs/cgroup/memory, .../cpu, ...); a v2 host has a single
// cgroup.controllers file at the unified mountpoint.
func Detect() Mode {
	if _, err := os.Stat(Mountpoint + "/cgroup.controllers"); err == nil {
		return V2
	}
	if _, err := os.Stat(Mountpoint + "/memory"); err == nil {
		if _, err := os.Stat("/sys/fs/cgroup/unified/cgroup.controllers"); err == nil {
			return Hybrid
		}
		return V1
	}
	return Unknown
}
