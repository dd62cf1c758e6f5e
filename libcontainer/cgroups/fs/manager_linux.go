package fs

import (
	"fmt"
	"os"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups/stats"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Manager is the v1 Cgroup Manager backend: one directory per
// subsystem, all sharing the same relative path under each
// subsystem's root.
type Manager struct {
	cfg   *configs.Cgroup
	paths map[string]string
}

// New constructs a v1 Manager for cfg, resolving each subsystem's
// directory from cfg.Path (if set) or Parent/Name.
func New(cfg *configs.Cgroup) *Manager {
	rel := cfg.Path
	if rel == "" {
		rel = cfg.Parent + "/" + cfg.Name
	}
	return &Manager{cfg: cfg, paths: Paths(rel)}
}

func (m *Manager) Path(subsystem string) string { return m.paths[subsystem] }

func (m *Manager) Apply(pid int) error {
	for _, s := range subsystems {
		dir := m.paths[s]
		if err := mkdirAll(dir); err != nil {
			if m.cfg.Rootless {
				continue
			}
			return fmt.Errorf("cgroups/fs: creating %s: %w", dir, err)
		}
		if err := writePid(dir, pid); err != nil {
			if m.cfg.Rootless {
				continue
			}
			return fmt.Errorf("cgroups/fs: joining %s: %w", dir, err)
		}
	}
	if m.cfg.Resources != nil && !m.cfg.Resources.SkipDevices {
		if err := applyDevices(m.paths["devices"], m.cfg.Resources); err != nil && !m.cfg.Rootless {
			return err
		}
	}
	return m.Set(m.cfg.Resources)
}

// Set (re)writes every configured limit. Unset (zero-value) fields are
// skipped so repeated calls never clobber a limit the caller didn't
// ask to change, per 4.E.
func (m *Manager) Set(res *configs.Resources) error {
	if res == nil {
		return nil
	}
	appliers := []func(string, *configs.Resources) error{
		applyMemory, applyCPU, applyCpuset, applyPids,
		applyBlkio, applyHugetlb, applyNetCls, applyNetPrio,
	}
	subs := []string{"memory", "cpu", "cpuset", "pids", "blkio", "hugetlb", "net_cls", "net_prio"}
	for i, apply := range appliers {
		dir := m.paths[subs[i]]
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := apply(dir, res); err != nil {
			if m.cfg.Rootless {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Manager) Freeze(state configs.FreezerState) error {
	return applyFreezer(m.paths["freezer"], state)
}

// Destroy removes every subsystem directory together with anything
// left inside it. Order doesn't matter here; a directory that is
// already gone is not an error.
func (m *Manager) Destroy() error {
	var firstErr error
	for _, dir := range m.paths {
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) GetPids() ([]int, error) {
	return readPids(m.paths["devices"])
}

func (m *Manager) GetStats() (*stats.Stats, error) {
	return readStats(m.paths)
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.paths["memory"])
	return err == nil
}
