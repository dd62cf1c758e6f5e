// Package specconv translates an OCI runtime-spec bundle
// (specs.Spec, read from config.json) into the configs.Config this
// runtime's birth protocol actually consumes. Grounded on runc's
// libcontainer/specconv package — the conversion table (namespaces,
// mounts, resources, capabilities) follows the same shape, adapted to
// this repo's Config/Resources field names.
package specconv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/willf/bitset"
	"golang.org/x/sys/unix"

	devices "github.com/opencontainers/cgroups/devices/config"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Opts carries the parts of "how to build this container" that don't
// live in the OCI spec itself (where the cgroup should live, whether
// systemd should own it).
type Opts struct {
	CgroupPath    string
	CgroupParent  string
	UseSystemd    bool
	ScopePrefix   string
	RootlessEUID  bool
	NoPivotRoot   bool
}

var nsTypeMap = map[specs.LinuxNamespaceType]configs.NamespaceType{
	specs.PIDNamespace:     configs.NEWPID,
	specs.NetworkNamespace: configs.NEWNET,
	specs.MountNamespace:   configs.NEWNS,
	specs.IPCNamespace:     configs.NEWIPC,
	specs.UTSNamespace:     configs.NEWUTS,
	specs.UserNamespace:    configs.NEWUSER,
	specs.CgroupNamespace:  configs.NEWCGROUP,
	specs.TimeNamespace:    configs.NEWTIME,
}

var rlimitMap = map[string]int{
	"RLIMIT_CPU":        unix.RLIMIT_CPU,
	"RLIMIT_FSIZE":      unix.RLIMIT_FSIZE,
	"RLIMIT_DATA":       unix.RLIMIT_DATA,
	"RLIMIT_STACK":      unix.RLIMIT_STACK,
	"RLIMIT_CORE":       unix.RLIMIT_CORE,
	"RLIMIT_RSS":        unix.RLIMIT_RSS,
	"RLIMIT_NPROC":      unix.RLIMIT_NPROC,
	"RLIMIT_NOFILE":     unix.RLIMIT_NOFILE,
	"RLIMIT_MEMLOCK":    unix.RLIMIT_MEMLOCK,
	"RLIMIT_AS":         unix.RLIMIT_AS,
	"RLIMIT_LOCKS":      unix.RLIMIT_LOCKS,
	"RLIMIT_SIGPENDING":  unix.RLIMIT_SIGPENDING,
	"RLIMIT_MSGQUEUE":   unix.RLIMIT_MSGQUEUE,
	"RLIMIT_NICE":       unix.RLIMIT_NICE,
	"RLIMIT_RTPRIO":     unix.RLIMIT_RTPRIO,
	"RLIMIT_RTTIME":     unix.RLIMIT_RTTIME,
}

// CreateLibcontainerConfig builds the process-independent Config every
// birth-protocol stage carries, from one OCI bundle's spec plus the
// bundle path it was read from (needed to resolve the spec's
// bundle-relative Root.Path into an absolute Rootfs).
func CreateLibcontainerConfig(containerID, bundle string, spec *specs.Spec, opts Opts) (*configs.Config, error) {
	if spec.Root == nil {
		return nil, fmt.Errorf("specconv: spec has no root")
	}
	rootfs := spec.Root.Path
	if !filepath.IsAbs(rootfs) {
		rootfs = filepath.Join(bundle, rootfs)
	}

	cfg := &configs.Config{
		Rootfs:          rootfs,
		Readonlyfs:      spec.Root.Readonly,
		Hostname:        spec.Hostname,
		Domainname:      spec.Domainname,
		NoPivotRoot:     opts.NoPivotRoot,
		RootlessEUID:    opts.RootlessEUID,
		Version:         spec.Version,
		NoNewKeyring:    true,
	}

	if spec.Linux != nil {
		if err := applyLinux(cfg, spec.Linux, containerID, opts); err != nil {
			return nil, err
		}
	}

	mounts, err := convertMounts(spec.Mounts)
	if err != nil {
		return nil, err
	}
	cfg.Mounts = append(cfg.Mounts, mounts...)

	if spec.Process != nil {
		proc, err := convertProcess(spec.Process)
		if err != nil {
			return nil, err
		}
		cfg.Process = proc
		cfg.NoNewPrivileges = spec.Process.NoNewPrivileges
		cfg.AppArmorProfile = spec.Process.ApparmorProfile
		cfg.ProcessLabel = spec.Process.SelinuxLabel
		if spec.Process.OOMScoreAdj != nil {
			cfg.OomScoreAdj = spec.Process.OOMScoreAdj
		}
		cfg.Capabilities = convertCapabilities(spec.Process.Capabilities)
		cfg.Rlimits = convertRlimits(spec.Process.Rlimits)
	}

	return cfg, nil
}

func applyLinux(cfg *configs.Config, l *specs.Linux, containerID string, opts Opts) error {
	cfg.MountLabel = l.MountLabel
	cfg.MaskPaths = l.MaskedPaths
	cfg.ReadonlyPaths = l.ReadonlyPaths
	cfg.Sysctl = l.Sysctl
	cfg.RootPropagation = propagationFlag(l.RootfsPropagation)

	for _, m := range l.UIDMappings {
		cfg.UIDMappings = append(cfg.UIDMappings, configs.IDMap{
			ContainerID: int64(m.ContainerID), HostID: int64(m.HostID), Size: int64(m.Size),
		})
	}
	for _, m := range l.GIDMappings {
		cfg.GIDMappings = append(cfg.GIDMappings, configs.IDMap{
			ContainerID: int64(m.ContainerID), HostID: int64(m.HostID), Size: int64(m.Size),
		})
	}

	ns := make(configs.Namespaces, 0, len(l.Namespaces))
	for _, n := range l.Namespaces {
		t, ok := nsTypeMap[n.Type]
		if !ok {
			return fmt.Errorf("specconv: unknown namespace type %q", n.Type)
		}
		ns = append(ns, configs.Namespace{Type: t, Path: n.Path})
	}
	cfg.Namespaces = ns

	for _, d := range l.Devices {
		dev, err := convertDevice(d)
		if err != nil {
			return err
		}
		cfg.Devices = append(cfg.Devices, dev)
	}

	if l.IntelRdt != nil {
		cfg.IntelRdt = &configs.IntelRdt{
			ClosID:        l.IntelRdt.ClosID,
			L3CacheSchema: l.IntelRdt.L3CacheSchema,
			MemBwSchema:   l.IntelRdt.MemBwSchema,
			EnableCMT:     l.IntelRdt.EnableCMT,
			EnableMBM:     l.IntelRdt.EnableMBM,
		}
	}

	cfg.Cgroups = &configs.Cgroup{
		Name:        containerID,
		Parent:      opts.CgroupParent,
		Path:        opts.CgroupPath,
		ScopePrefix: opts.ScopePrefix,
		Systemd:     opts.UseSystemd,
		Resources:   convertResources(l.Resources),
	}

	return nil
}

func propagationFlag(p string) int {
	switch p {
	case "shared":
		return unix.MS_SHARED | unix.MS_REC
	case "slave":
		return unix.MS_SLAVE | unix.MS_REC
	case "unbindable":
		return unix.MS_UNBINDABLE | unix.MS_REC
	default:
		return unix.MS_PRIVATE | unix.MS_REC
	}
}

func convertMounts(in []specs.Mount) ([]*configs.Mount, error) {
	out := make([]*configs.Mount, 0, len(in))
	for _, m := range in {
		parsed, err := parseMountOptions(m.Type, m.Options)
		if err != nil {
			return nil, fmt.Errorf("specconv: mount %s: %w", m.Destination, err)
		}
		out = append(out, &configs.Mount{
			Source:           m.Source,
			Destination:      m.Destination,
			Device:           m.Type,
			Data:             parsed.data,
			Flags:            parsed.flags,
			PropagationFlags: parsed.propFlags,
			Recursive:        parsed.recursive,
			RecAttrSet:       parsed.recAttrSet,
			RecAttrClear:     parsed.recAttrClear,
		})
	}
	return out, nil
}

// recursiveAttrMap maps the recursive-attribute OCI mount options onto
// the RecAttrSet bit mount_setattr(2) should add; there is no
// corresponding "clear" option in the OCI spec's vocabulary, so every
// entry here only ever populates RecAttrSet.
var recursiveAttrMap = map[string]int{
	"rro": configs.RecAttrReadonly,
}

// parseMountOptions maps the well-known OCI mount option strings onto
// mount(2) MS_* flags, following the same option table runc's
// mount_linux.go uses; everything not recognized is passed through
// verbatim as comma-joined data. idmap/ridmap are explicitly refused:
// identity-mapped mounts need a user namespace fd this runtime doesn't
// plumb through the mount pipeline yet, so silently forwarding them as
// opaque data would only surface as a confusing EINVAL from mount(2).
var mountFlagMap = map[string]int{
	"bind":        unix.MS_BIND,
	"rbind":       unix.MS_BIND | unix.MS_REC,
	"ro":          unix.MS_RDONLY,
	"nosuid":      unix.MS_NOSUID,
	"nodev":       unix.MS_NODEV,
	"noexec":      unix.MS_NOEXEC,
	"sync":        unix.MS_SYNCHRONOUS,
	"dirsync":     unix.MS_DIRSYNC,
	"remount":     unix.MS_REMOUNT,
	"mand":        unix.MS_MANDLOCK,
	"noatime":     unix.MS_NOATIME,
	"nodiratime":  unix.MS_NODIRATIME,
	"relatime":    unix.MS_RELATIME,
	"strictatime": unix.MS_STRICTATIME,
}

var propagationFlagMap = map[string]int{
	"shared":     unix.MS_SHARED,
	"rshared":    unix.MS_SHARED | unix.MS_REC,
	"slave":      unix.MS_SLAVE,
	"rslave":     unix.MS_SLAVE | unix.MS_REC,
	"private":    unix.MS_PRIVATE,
	"rprivate":   unix.MS_PRIVATE | unix.MS_REC,
	"unbindable": unix.MS_UNBINDABLE,
}

// parsedMountOptions is the result of splitting one mount's OCI option
// list into the mount(2)/mount_setattr(2) pieces the rootfs pipeline
// applies separately.
type parsedMountOptions struct {
	flags        int
	data         string
	propFlags    []int
	recursive    bool
	recAttrSet   *bitset.BitSet
	recAttrClear *bitset.BitSet
}

func parseMountOptions(fstype string, opts []string) (parsedMountOptions, error) {
	var p parsedMountOptions
	for _, o := range opts {
		if o == "idmap" || o == "ridmap" {
			return parsedMountOptions{}, fmt.Errorf("mount option %q is not supported", o)
		}
		if f, ok := mountFlagMap[o]; ok {
			p.flags |= f
			continue
		}
		if f, ok := propagationFlagMap[o]; ok {
			p.propFlags = append(p.propFlags, f)
			continue
		}
		if bit, ok := recursiveAttrMap[o]; ok {
			p.recursive = true
			if p.recAttrSet == nil {
				p.recAttrSet = bitset.New(8)
			}
			p.recAttrSet.Set(uint(bit))
			continue
		}
		if p.data != "" {
			p.data += ","
		}
		p.data += o
	}
	if fstype == "bind" {
		p.flags |= unix.MS_BIND
	}
	return p, nil
}

func convertDevice(d specs.LinuxDevice) (*devices.Device, error) {
	var t devices.Type
	switch d.Type {
	case "c", "u":
		t = devices.CharDevice
	case "b":
		t = devices.BlockDevice
	case "p":
		t = devices.FifoDevice
	default:
		return nil, fmt.Errorf("specconv: unknown device type %q", d.Type)
	}
	dev := &devices.Device{
		Rule: devices.Rule{
			Type:  t,
			Major: d.Major,
			Minor: d.Minor,
		},
		Path: d.Path,
	}
	if d.FileMode != nil {
		dev.FileMode = *d.FileMode
	}
	if d.UID != nil {
		dev.Uid = *d.UID
	}
	if d.GID != nil {
		dev.Gid = *d.GID
	}
	return dev, nil
}

func convertResources(r *specs.LinuxResources) *configs.Resources {
	res := &configs.Resources{}
	if r == nil {
		return res
	}
	for _, d := range r.Devices {
		rule := &devices.Rule{Allow: d.Allow, Permissions: devices.Permissions(d.Access)}
		switch d.Type {
		case "a":
			rule.Type = devices.WildcardDevice
		case "c":
			rule.Type = devices.CharDevice
		case "b":
			rule.Type = devices.BlockDevice
		}
		if d.Major != nil {
			rule.Major = *d.Major
		} else {
			rule.Major = devices.Wildcard
		}
		if d.Minor != nil {
			rule.Minor = *d.Minor
		} else {
			rule.Minor = devices.Wildcard
		}
		res.Devices = append(res.Devices, rule)
	}
	if m := r.Memory; m != nil {
		if m.Limit != nil {
			res.Memory = *m.Limit
		}
		if m.Reservation != nil {
			res.MemoryReservation = *m.Reservation
		}
		if m.Swap != nil {
			res.MemorySwap = *m.Swap
		}
		if m.Kernel != nil {
			res.KernelMemory = *m.Kernel
		}
		if m.KernelTCP != nil {
			res.KernelMemoryTCP = *m.KernelTCP
		}
		if m.Swappiness != nil {
			v := int64(*m.Swappiness)
			res.Swappiness = &v
		}
		if m.DisableOOMKiller != nil {
			res.OomKillDisable = *m.DisableOOMKiller
		}
	}
	if c := r.CPU; c != nil {
		if c.Shares != nil {
			res.CPUShares = *c.Shares
		}
		if c.Quota != nil {
			res.CPUQuota = *c.Quota
		}
		if c.Period != nil {
			res.CPUPeriod = *c.Period
		}
		if c.RealtimeRuntime != nil {
			res.CPURtRuntime = *c.RealtimeRuntime
		}
		if c.RealtimePeriod != nil {
			res.CPURtPeriod = *c.RealtimePeriod
		}
		res.CpusetCpus = c.Cpus
		res.CpusetMems = c.Mems
		res.CPUIdle = c.Idle
		res.CPUBurst = c.Burst
	}
	if p := r.Pids; p != nil {
		res.PidsLimit = p.Limit
	}
	if b := r.BlockIO; b != nil {
		if b.Weight != nil {
			res.BlkioWeight = *b.Weight
		}
		if b.LeafWeight != nil {
			res.BlkioLeafWeight = *b.LeafWeight
		}
		for _, wd := range b.WeightDevice {
			w := &configs.WeightDevice{Major: wd.Major, Minor: wd.Minor}
			if wd.Weight != nil {
				w.Weight = *wd.Weight
			}
			if wd.LeafWeight != nil {
				w.LeafWeight = *wd.LeafWeight
			}
			res.BlkioWeightDevice = append(res.BlkioWeightDevice, w)
		}
		res.BlkioThrottleReadBpsDevice = convertThrottle(b.ThrottleReadBpsDevice)
		res.BlkioThrottleWriteBpsDevice = convertThrottle(b.ThrottleWriteBpsDevice)
		res.BlkioThrottleReadIOPSDevice = convertThrottle(b.ThrottleReadIOPSDevice)
		res.BlkioThrottleWriteIOPSDevice = convertThrottle(b.ThrottleWriteIOPSDevice)
	}
	for _, h := range r.HugepageLimits {
		res.HugetlbLimit = append(res.HugetlbLimit, &configs.HugepageLimit{Pagesize: h.Pagesize, Limit: h.Limit})
	}
	res.Unified = r.Unified
	return res
}

func convertThrottle(in []specs.LinuxThrottleDevice) []*configs.ThrottleDevice {
	out := make([]*configs.ThrottleDevice, 0, len(in))
	for _, t := range in {
		out = append(out, &configs.ThrottleDevice{Major: t.Major, Minor: t.Minor, Rate: t.Rate})
	}
	return out
}

func convertCapabilities(c *specs.LinuxCapabilities) *configs.Capabilities {
	if c == nil {
		return nil
	}
	return &configs.Capabilities{
		Bounding:    c.Bounding,
		Effective:   c.Effective,
		Inheritable: c.Inheritable,
		Permitted:   c.Permitted,
		Ambient:     c.Ambient,
	}
}

func convertRlimits(in []specs.POSIXRlimit) []configs.Rlimit {
	out := make([]configs.Rlimit, 0, len(in))
	for _, r := range in {
		kind, ok := rlimitMap[r.Type]
		if !ok {
			continue
		}
		out = append(out, configs.Rlimit{Type: kind, Hard: r.Hard, Soft: r.Soft})
	}
	return out
}

func convertProcess(p *specs.Process) (*configs.Process, error) {
	if len(p.Args) == 0 {
		return nil, fmt.Errorf("specconv: process has no args")
	}
	cwd := p.Cwd
	if cwd == "" {
		cwd = "/"
	}
	proc := &configs.Process{
		Args:     p.Args,
		Env:      p.Env,
		Cwd:      cwd,
		UID:      int(p.User.UID),
		GID:      int(p.User.GID),
		Terminal: p.Terminal,
	}
	for _, g := range p.User.AdditionalGids {
		proc.AdditionalGroups = append(proc.AdditionalGroups, int(g))
	}
	return proc, nil
}

// ToRootfsAbs resolves root against bundle into an absolute, cleaned
// path and, for a relative root, checks that the result exists.
// CreateLibcontainerConfig does not call it; it joins a relative
// spec.Root.Path onto bundle itself, without the existence check.
func ToRootfsAbs(bundle, root string) (string, error) {
	if filepath.IsAbs(root) {
		return filepath.Clean(root), nil
	}
	abs, err := filepath.Abs(filepath.Join(bundle, root))
	if err != nil {
		return "", fmt.Errorf("specconv: resolving rootfs: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("specconv: rootfs %s: %w", abs, err)
	}
	return abs, nil
}
