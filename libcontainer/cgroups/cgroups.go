// Package cgroups is the Cgroup Manager (4.E): one Manager interface
// with three backends (v1 per-subsystem hierarchy, v2 unified, and
// systemd-delegated transient scopes), selected by NewManager from what
// the host kernel mounts and by the container's own Cgroup.Systemd
// flag. Grounded on the youki reference's cgroups crate
// (original_source/crates/libcgroups/src/{v1,v2,systemd}) and on
// abalmos-sysbox-runc/libcontainer/process_linux.go's use of
// runc-family cgroups/fs and cgroups/fs2 packages, here vendored as
// sibling packages of the same names under this module instead of
// imported, since the spec's Manager surface differs from upstream's.
package cgroups

import (
	"fmt"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups/fs"
	"github.com/cellarium-oci/crucible/libcontainer/cgroups/fs2"
	"github.com/cellarium-oci/crucible/libcontainer/cgroups/hostmode"
	"github.com/cellarium-oci/crucible/libcontainer/cgroups/systemd"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Manager drives one container's cgroup(s) through its lifecycle.
// A Manager is built from the container's Cgroup config wherever one
// is needed: by Create, by every Load, and separately by the
// intermediate process, which is the one that calls Apply.
type Manager interface {
	// Apply creates the cgroup (and, for systemd, the transient scope
	// unit) and moves pid into it.
	Apply(pid int) error
	// Set (re)writes every resource limit in res. The fs and fs2
	// backends call it at the end of Apply.
	Set(res *configs.Resources) error
	// Freeze drives the freezer (v1 subsystem, v2 cgroup.freeze, or
	// systemd Freeze/Thaw unit method) to the requested state.
	Freeze(state configs.FreezerState) error
	// Destroy removes the cgroup once every process has exited it.
	Destroy() error
	// Path returns the cgroup's own path (v1: one per subsystem; v2 and
	// systemd: single path), keyed by subsystem name ("" for v2/systemd).
	Path(subsystem string) string
	// GetPids returns every pid currently in the cgroup.
	GetPids() ([]int, error)
	// GetStats reads every controller's accounting files into Stats.
	GetStats() (*Stats, error)
	// Exists reports whether the cgroup directory (still) exists on
	// disk.
	Exists() bool
}

// DetectMode re-exports hostmode.Detect for callers that only import
// package cgroups.
func DetectMode() hostmode.Mode { return hostmode.Detect() }

// NewManager selects and constructs the appropriate backend for cfg,
// per 4.E: "systemd flag takes priority over detected mode; v2 is
// preferred over v1 when both are viable and neither is requested."
func NewManager(cfg *configs.Cgroup) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cgroups: nil config")
	}
	mode := hostmode.Detect()
	if cfg.Systemd {
		return systemd.New(cfg, mode)
	}
	switch mode {
	case hostmode.V2, hostmode.Hybrid:
		return fs2.New(cfg), nil
	case hostmode.V1:
		return fs.New(cfg), nil
	default:
		return nil, fmt.Errorf("cgroups: unable to detect cgroup mode under %s", hostmode.Mountpoint)
	}
}
