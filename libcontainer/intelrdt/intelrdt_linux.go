// Package intelrdt manages a container's Intel Resource Director
// Technology group under /sys/fs/resctrl: creating (or joining) a
// CLOS directory, writing its cache/membw schemata, adding the
// container's pid, and removing the directory on teardown. Grounded
// on runc's libcontainer/intelrdt package, the same shape the teacher
// repo's process_linux.go references, adapted onto this runtime's
// Config/Manager vocabulary.
package intelrdt

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

const root = "/sys/fs/resctrl"

// Manager owns one resctrl group for the lifetime of a container.
type Manager struct {
	containerID string
	cfg         *configs.IntelRdt
	closID      string
}

func New(containerID string, cfg *configs.IntelRdt) *Manager {
	if cfg == nil {
		return nil
	}
	closID := cfg.ClosID
	if closID == "" {
		closID = containerID
	}
	return &Manager{containerID: containerID, cfg: cfg, closID: closID}
}

func (m *Manager) Path() string { return filepath.Join(root, m.closID) }

// Supported reports whether the kernel exposes resctrl at all.
func Supported() bool {
	_, err := os.Stat(root)
	return err == nil
}

// Apply creates (or joins, if another container already set up the
// same ClosID) the group, writes its schemata, and adds pid.
func (m *Manager) Apply(pid int) error {
	if m == nil {
		return nil
	}
	if !Supported() {
		return fmt.Errorf("intelrdt: resctrl not mounted at %s", root)
	}
	path := m.Path()
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("intelrdt: creating group %s: %w", path, err)
	}
	if err := m.writeSchemata(path); err != nil {
		return err
	}
	tasks := filepath.Join(path, "tasks")
	if err := os.WriteFile(tasks, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("intelrdt: adding pid %d to %s: %w", pid, tasks, err)
	}
	return nil
}

func (m *Manager) writeSchemata(path string) error {
	var lines string
	if m.cfg.L3CacheSchema != "" {
		lines += m.cfg.L3CacheSchema + "\n"
	}
	if m.cfg.MemBwSchema != "" {
		lines += m.cfg.MemBwSchema + "\n"
	}
	if lines == "" {
		return nil
	}
	schemata := filepath.Join(path, "schemata")
	if err := os.WriteFile(schemata, []byte(lines), 0o644); err != nil {
		return fmt.Errorf("intelrdt: writing schemata to %s: %w", schemata, err)
	}
	return nil
}

// Destroy removes the group directory. ENOENT (already gone, or
// shared with another container that removed it first) is not an
// error.
func (m *Manager) Destroy() error {
	if m == nil {
		return nil
	}
	if err := os.Remove(m.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("intelrdt: removing group %s: %w", m.Path(), err)
	}
	return nil
}
