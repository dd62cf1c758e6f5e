// Package stats defines the accounting shape shared by every cgroup
// backend (v1, v2, systemd), kept separate from package cgroups itself
// so the backend packages can return it without importing back up into
// the package that imports them.
package stats

// Stats mirrors the accounting fields the youki reference collects in
// cgroups::stats (original_source/crates/libcgroups/src/stats.rs),
// trimmed to the subset every one of our three backends can populate
// uniformly.
type Stats struct {
	Memory MemoryStats `json:"memory"`
	CPU    CPUStats    `json:"cpu"`
	Pids   PidsStats   `json:"pids"`
	Blkio  BlkioStats  `json:"blkio"`
}

type MemoryStats struct {
	Usage        MemoryData        `json:"usage"`
	Swap         MemoryData        `json:"swap"`
	Kernel       MemoryData        `json:"kernel"`
	KernelTCP    MemoryData        `json:"kernel_tcp"`
	Stats        map[string]uint64 `json:"stats,omitempty"`
	UseHierarchy bool              `json:"use_hierarchy"`
}

type MemoryData struct {
	Usage    uint64 `json:"usage"`
	MaxUsage uint64 `json:"max_usage"`
	Failcnt  uint64 `json:"failcnt"`
	Limit    uint64 `json:"limit"`
}

type CPUStats struct {
	UsageUsec        uint64 `json:"usage_usec"`
	UserUsec         uint64 `json:"user_usec"`
	SystemUsec       uint64 `json:"system_usec"`
	ThrottledPeriods uint64 `json:"throttled_periods"`
	ThrottledUsec    uint64 `json:"throttled_usec"`
}

type PidsStats struct {
	Current uint64 `json:"current"`
	Limit   uint64 `json:"limit"`
}

type BlkioStats struct {
	IoServiceBytesRecursive []BlkioEntry `json:"io_service_bytes_recursive,omitempty"`
	IoServicedRecursive     []BlkioEntry `json:"io_serviced_recursive,omitempty"`
}

type BlkioEntry struct {
	Major, Minor int64  `json:"-"`
	Op           string `json:"op"`
	Value        uint64 `json:"value"`
}
