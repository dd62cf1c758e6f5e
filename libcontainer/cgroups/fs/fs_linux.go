// Package fs is the cgroup v1 backend: one subdirectory per
// controller, rooted at /sys/fs/cgroup/<subsystem>. Grounded on the
// youki reference's cgroups v1 controllers (original_source/crates/
// libcgroups/src/v1/{memory,cpu,cpuset,pids,devices,blkio,hugetlb,
// net_cls,net_prio,freezer,perf_event}.rs), in particular memory.rs's
// swap-then-limit vs limit-then-swap ordering and the EBUSY
// read-current-value-and-retry dance, both reproduced in memory.go.
package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	devices "github.com/opencontainers/cgroups/devices/config"
)

// Root is where the v1 hierarchy is mounted; overridable only by
// tests.
var Root = "/sys/fs/cgroup"

// subsystems lists every v1 controller this runtime manages, in the
// fixed order Apply/Set drive them.
var subsystems = []string{
	"memory", "cpu", "cpuset", "pids", "devices",
	"blkio", "hugetlb", "net_cls", "net_prio", "freezer", "perf_event",
}

// Paths returns each subsystem's absolute cgroup directory for a
// container whose Cgroup.Path/Name/Parent resolve to rel.
func Paths(rel string) map[string]string {
	out := make(map[string]string, len(subsystems))
	for _, s := range subsystems {
		out[s] = filepath.Join(Root, s, rel)
	}
	return out
}

// writeFile writes value to the named cgroup control file, surfacing
// any failure (ENOENT included) with file/value context.
func writeFile(dir, file, value string) error {
	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("cgroups/fs: write %s=%q: %w", path, value, err)
	}
	return nil
}

func readFile(dir, file string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func mkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// writePid adds pid to the subsystem's cgroup.procs (falls back to the
// legacy "tasks" file for subsystems mounted without cgroup.procs).
func writePid(dir string, pid int) error {
	val := strconv.Itoa(pid)
	if _, err := os.Stat(filepath.Join(dir, "cgroup.procs")); os.IsNotExist(err) {
		return writeFile(dir, "tasks", val)
	}
	return writeFile(dir, "cgroup.procs", val)
}

func readPids(dir string) ([]int, error) {
	f, err := os.Open(filepath.Join(dir, "cgroup.procs"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var pids []int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		v, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
		if err != nil {
			continue
		}
		pids = append(pids, v)
	}
	return pids, sc.Err()
}

// deviceRuleLine renders one devices.Rule as the devices.allow/deny
// control-file line format: "<type> <major>:<minor> <perms>".
func deviceRuleLine(r *devices.Rule) string {
	maj, min := "*", "*"
	if r.Major >= 0 {
		maj = strconv.FormatInt(r.Major, 10)
	}
	if r.Minor >= 0 {
		min = strconv.FormatInt(r.Minor, 10)
	}
	t := string(r.Type)
	if t == "" {
		t = "a"
	}
	return fmt.Sprintf("%s %s:%s %s", t, maj, min, r.Permissions)
}
