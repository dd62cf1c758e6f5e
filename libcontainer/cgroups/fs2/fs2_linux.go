// Package fs2 is the cgroup v2 unified backend: every controller
// lives under one directory, gated by cgroup.subtree_control on the
// parent. Grounded on the youki reference's cgroups::v2 module
// (original_source/crates/libcgroups/src/v2/) and on akabarki76-runc's
// modern runc config shapes for field naming.
package fs2

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Root is where the unified hierarchy is mounted.
var Root = "/sys/fs/cgroup"

// Manager is the v2 Cgroup Manager backend.
type Manager struct {
	cfg  *configs.Cgroup
	path string
}

func New(cfg *configs.Cgroup) *Manager {
	rel := cfg.Path
	if rel == "" {
		rel = cfg.Parent + "/" + cfg.Name
	}
	return &Manager{cfg: cfg, path: filepath.Join(Root, rel)}
}

func (m *Manager) Path(string) string { return m.path }

func (m *Manager) Apply(pid int) error {
	if err := os.MkdirAll(m.path, 0o755); err != nil {
		if m.cfg.Rootless {
			return nil
		}
		return fmt.Errorf("cgroups/fs2: creating %s: %w", m.path, err)
	}
	if err := enableControllers(m.path); err != nil && !m.cfg.Rootless {
		return err
	}
	if err := writeFile(m.path, "cgroup.procs", strconv.Itoa(pid)); err != nil {
		if m.cfg.Rootless {
			return nil
		}
		return fmt.Errorf("cgroups/fs2: joining %s: %w", m.path, err)
	}
	if m.cfg.Resources != nil && !m.cfg.Resources.SkipDevices {
		// v2 device access is an eBPF cgroup/device program attach, not
		// a text file write (4.E); installing it is a separate concern
		// from the per-controller limit writes Set handles below.
		if err := applyDeviceProgram(m.path, m.cfg.Resources.Devices); err != nil && !m.cfg.Rootless {
			return err
		}
	}
	return m.Set(m.cfg.Resources)
}

// enableControllers turns on every controller this cgroup's own
// directory exposes by writing "+memory +cpu ..." to the PARENT's
// cgroup.subtree_control, per the v2 delegation model (a cgroup can
// only use a controller its parent has delegated down to it).
func enableControllers(path string) error {
	avail, err := os.ReadFile(filepath.Join(filepath.Dir(path), "cgroup.controllers"))
	if err != nil {
		return nil
	}
	names := strings.Fields(string(avail))
	if len(names) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, n := range names {
		sb.WriteString("+" + n + " ")
	}
	return writeFile(filepath.Dir(path), "cgroup.subtree_control", strings.TrimSpace(sb.String()))
}

func (m *Manager) Set(res *configs.Resources) error {
	if res == nil {
		return nil
	}
	if res.Memory != 0 {
		if err := writeFile(m.path, "memory.max", strconv.FormatInt(res.Memory, 10)); err != nil {
			return err
		}
	}
	if res.MemoryReservation != 0 {
		if err := writeFile(m.path, "memory.low", strconv.FormatInt(res.MemoryReservation, 10)); err != nil {
			return err
		}
	}
	if res.MemorySwap != 0 {
		if err := writeFile(m.path, "memory.swap.max", strconv.FormatInt(res.MemorySwap, 10)); err != nil {
			return err
		}
	}
	if res.CPUShares != 0 {
		// v2 expresses shares as cpu.weight in [1,10000]; the classic
		// [2,262144] cpu.shares range maps onto it linearly, the same
		// conversion the reference backend's v2 Cpu controller uses.
		weight := 1 + ((res.CPUShares-2)*9999)/262142
		if err := writeFile(m.path, "cpu.weight", strconv.FormatUint(weight, 10)); err != nil {
			return err
		}
	}
	if res.CPUQuota != 0 || res.CPUPeriod != 0 {
		period := res.CPUPeriod
		if period == 0 {
			period = 100000
		}
		quota := "max"
		if res.CPUQuota > 0 {
			quota = strconv.FormatInt(res.CPUQuota, 10)
		}
		if err := writeFile(m.path, "cpu.max", fmt.Sprintf("%s %d", quota, period)); err != nil {
			return err
		}
	}
	if res.CpusetCpus != "" {
		if err := writeFile(m.path, "cpuset.cpus", res.CpusetCpus); err != nil {
			return err
		}
	}
	if res.CpusetMems != "" {
		if err := writeFile(m.path, "cpuset.mems", res.CpusetMems); err != nil {
			return err
		}
	}
	if res.PidsLimit != 0 {
		v := "max"
		if res.PidsLimit > 0 {
			v = strconv.FormatInt(res.PidsLimit, 10)
		}
		if err := writeFile(m.path, "pids.max", v); err != nil {
			return err
		}
	}
	for k, v := range res.Unified {
		if err := writeFile(m.path, k, v); err != nil {
			return fmt.Errorf("cgroups/fs2: unified %s=%s: %w", k, v, err)
		}
	}
	return nil
}

func (m *Manager) Freeze(state configs.FreezerState) error {
	if state == configs.Undefined {
		return nil
	}
	v := "0"
	if state == configs.Frozen {
		v = "1"
	}
	return writeFile(m.path, "cgroup.freeze", v)
}

func (m *Manager) Destroy() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Manager) GetPids() ([]int, error) {
	b, err := os.ReadFile(filepath.Join(m.path, "cgroup.procs"))
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, f := range strings.Fields(string(b)) {
		if v, err := strconv.Atoi(f); err == nil {
			pids = append(pids, v)
		}
	}
	return pids, nil
}

func (m *Manager) GetStats() (*stats.Stats, error) {
	var s stats.Stats
	if v, err := readUint(m.path, "memory.current"); err == nil {
		s.Memory.Usage.Usage = v
	}
	if v, err := readMax(m.path, "memory.max"); err == nil {
		s.Memory.Usage.Limit = v
	}
	if v, err := readUint(m.path, "pids.current"); err == nil {
		s.Pids.Current = v
	}
	return &s, nil
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

func writeFile(dir, file, value string) error {
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("cgroups/fs2: write %s=%q: %w", path, value, err)
	}
	return nil
}

func readUint(dir, file string) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}

func readMax(dir, file string) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "max" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
