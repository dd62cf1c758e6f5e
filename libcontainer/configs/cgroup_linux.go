package configs

import devices "github.com/opencontainers/cgroups/devices/config"

// Cgroup is the resource-controller configuration for one container
// (§3 Cgroup Controller identifier, §4.E). Path/Parent/Name together
// identify where this cgroup lives; Systemd selects the backend.
type Cgroup struct {
	// Name is the cgroup's own directory / systemd scope name.
	Name string `json:"name,omitempty"`
	// Parent is the parent cgroup, or systemd slice, this cgroup nests
	// under.
	Parent string `json:"parent,omitempty"`
	// Path is a pre-resolved, literal cgroup path; when set it takes
	// priority over Name/Parent composition.
	Path string `json:"path"`

	// ScopePrefix is prepended to Name when constructing a systemd
	// transient unit name ("<prefix>-<name>.scope").
	ScopePrefix string `json:"scope_prefix,omitempty"`

	// Systemd selects the systemd-delegated backend over raw v1/v2
	// file writes.
	Systemd bool `json:"systemd,omitempty"`

	// Rootless tolerates resource-write failures that are expected
	// when running without full cgroup delegation.
	Rootless bool `json:"rootless,omitempty"`

	Resources *Resources `json:"resources"`
}

// Resources is the typed superset of every per-controller limit the
// Cgroup Manager's Apply (4.E) can write; fields left at their zero
// value are treated as "not set" (not "set to zero") except where
// individually noted.
type Resources struct {
	Devices []*devices.Rule `json:"devices"`

	Memory          int64 `json:"memory"`
	MemoryReservation int64 `json:"memory_reservation"`
	MemorySwap      int64 `json:"memory_swap"`
	KernelMemory    int64 `json:"kernel_memory"`
	KernelMemoryTCP int64 `json:"kernel_memory_tcp"`
	// Swappiness must be 0-100, or -1 to leave it untouched.
	Swappiness     *int64 `json:"swappiness,omitempty"`
	DisableOOMKiller bool `json:"disable_oom_killer"`
	OomKillDisable bool  `json:"oom_kill_disable"`

	CPUShares  uint64 `json:"cpu_shares"`
	CPUQuota   int64  `json:"cpu_quota"`
	CPUPeriod  uint64 `json:"cpu_period"`
	CPURtRuntime int64 `json:"cpu_rt_runtime"`
	CPURtPeriod  uint64 `json:"cpu_rt_period"`
	CPUIdle      *int64 `json:"cpu_idle,omitempty"`
	CPUBurst     *uint64 `json:"cpu_burst,omitempty"`

	CpusetCpus string `json:"cpuset_cpus"`
	CpusetMems string `json:"cpuset_mems"`

	PidsLimit int64 `json:"pids_limit"`

	BlkioWeight           uint16                  `json:"blkio_weight"`
	BlkioLeafWeight       uint16                  `json:"blkio_leaf_weight"`
	BlkioWeightDevice     []*WeightDevice         `json:"blkio_weight_device"`
	BlkioThrottleReadBpsDevice    []*ThrottleDevice `json:"blkio_throttle_read_bps_device"`
	BlkioThrottleWriteBpsDevice   []*ThrottleDevice `json:"blkio_throttle_write_bps_device"`
	BlkioThrottleReadIOPSDevice   []*ThrottleDevice `json:"blkio_throttle_read_iops_device"`
	BlkioThrottleWriteIOPSDevice  []*ThrottleDevice `json:"blkio_throttle_write_iops_device"`

	HugetlbLimit []*HugepageLimit `json:"hugetlb_limit"`

	NetClsClassid  uint32            `json:"net_cls_classid_u"`
	NetPrioIfpriomap []*IfPrioMap    `json:"net_prio_ifpriomap"`

	Freezer FreezerState `json:"-"`

	// Unified carries raw key=value lines for v2 files the typed
	// fields above don't cover (4.E "Unified").
	Unified map[string]string `json:"unified,omitempty"`

	OomScoreAdj *int `json:"oom_score_adj,omitempty"`

	// SkipDevices disables the default-deny devices.allow/deny
	// bootstrap this runtime otherwise applies unconditionally.
	SkipDevices bool `json:"-"`
}

// WeightDevice is a per-device blkio weight entry.
type WeightDevice struct {
	Major, Minor       int64
	Weight, LeafWeight uint16
}

// ThrottleDevice is a per-device blkio rate-limit entry.
type ThrottleDevice struct {
	Major, Minor int64
	Rate         uint64
}

// HugepageLimit limits usage of one hugetlb page size.
type HugepageLimit struct {
	Pagesize string `json:"page_size"`
	Limit    uint64 `json:"limit"`
}

// IfPrioMap assigns a net_prio priority to one interface.
type IfPrioMap struct {
	Interface string `json:"interface"`
	Priority  int64  `json:"priority"`
}

// FreezerState is the pause/resume state the freezer subsystem (or v2
// cgroup.freeze, or systemd unit property) is driven to (4.E freeze).
type FreezerState string

const (
	Undefined FreezerState = ""
	Frozen    FreezerState = "FROZEN"
	Thawed    FreezerState = "THAWED"
)
