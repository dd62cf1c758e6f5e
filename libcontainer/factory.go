package libcontainer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/intelrdt"
	"github.com/cellarium-oci/crucible/libcontainer/process"
	"github.com/cellarium-oci/crucible/libcontainer/system"
	"github.com/cellarium-oci/crucible/libcontainer/userns"
)

// Create builds a new Container (the Builder, 4.I): it validates the
// resolved config, lays out a fresh state directory, runs the birth
// protocol up through init binding its notify socket and reporting
// ready, and persists the resulting state. The container is left in
// the Created status; Start releases it.
func Create(stateRoot, id, bundle string, cfg *configs.Config, pidFile string, detach bool) (*Container, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	stateDir := filepath.Join(stateRoot, id)
	if _, err := os.Stat(stateDir); err == nil {
		return nil, fmt.Errorf("libcontainer: container %s already exists", id)
	}
	if err := os.MkdirAll(stateDir, 0o711); err != nil {
		return nil, fmt.Errorf("libcontainer: creating state dir %s: %w", stateDir, err)
	}

	// init itself binds "<stateDir>/notify.sock" before pivoting into
	// the new rootfs, then blocks in accept — by the time process.Start
	// below returns init's pid, the socket already exists for Start to
	// dial (4.K "start" / §6 notify protocol).

	cgroupMgr, err := cgroups.NewManager(cfg.Cgroups)
	if err != nil {
		os.RemoveAll(stateDir)
		return nil, fmt.Errorf("libcontainer: constructing cgroup manager: %w", err)
	}
	intelrdtMgr := intelrdt.New(id, cfg.IntelRdt)

	args := &process.Args{
		ContainerID: id,
		Config:      cfg,
		StateDir:    stateDir,
		PidFile:     pidFile,
		Detach:      detach,
	}
	initPid, err := process.Start(cfg, args)
	if err != nil {
		os.RemoveAll(stateDir)
		return nil, fmt.Errorf("libcontainer: running birth protocol: %w", err)
	}

	if intelrdtMgr != nil {
		if err := intelrdtMgr.Apply(initPid); err != nil {
			return nil, fmt.Errorf("libcontainer: applying intelrdt: %w", err)
		}
	}

	st := &State{
		ID:             id,
		Bundle:         bundle,
		Config:         cfg,
		Created:        time.Now(),
		InitProcessPid: initPid,
		Rootless:       cfg.RootlessEUID,
	}
	if startTime, err := processStartTime(initPid); err == nil {
		st.InitProcessStartTime = startTime
	}
	if err := saveState(stateDir, st); err != nil {
		return nil, err
	}

	return &Container{
		id:          id,
		stateDir:    stateDir,
		bundle:      bundle,
		config:      cfg,
		cgroupMgr:   cgroupMgr,
		intelrdtMgr: intelrdtMgr,
		surface:     system.Linux{},
		state:       st,
	}, nil
}

// Load reattaches to a previously created container by reading its
// persisted state back off disk — no birth protocol runs here, since
// the container's processes are (or were) already alive.
func Load(stateRoot, id string) (*Container, error) {
	stateDir := filepath.Join(stateRoot, id)
	st, err := loadState(stateDir)
	if err != nil {
		return nil, fmt.Errorf("libcontainer: loading container %s: %w", id, err)
	}
	cgroupMgr, err := cgroups.NewManager(st.Config.Cgroups)
	if err != nil {
		return nil, fmt.Errorf("libcontainer: constructing cgroup manager: %w", err)
	}
	return &Container{
		id:          id,
		stateDir:    stateDir,
		bundle:      st.Bundle,
		config:      st.Config,
		cgroupMgr:   cgroupMgr,
		intelrdtMgr: intelrdt.New(id, st.Config.IntelRdt),
		surface:     system.Linux{},
		state:       st,
	}, nil
}

// List returns the ids of every container known under stateRoot.
func List(stateRoot string) ([]string, error) {
	return listStateDirs(stateRoot)
}

func validate(cfg *configs.Config) error {
	if cfg.Rootfs == "" {
		return fmt.Errorf("libcontainer: config has no rootfs")
	}
	if cfg.Process == nil {
		return fmt.Errorf("libcontainer: config has no process")
	}
	if cfg.Namespaces.Contains(configs.NEWUSER) {
		if err := userns.Validate(cfg.UIDMappings, cfg.GIDMappings); err != nil {
			return fmt.Errorf("libcontainer: validating id mappings: %w", err)
		}
	}
	return nil
}

// processStartTime reads /proc/<pid>/stat field 22, used the same way
// runc does to disambiguate a reused pid across the container's
// lifetime (4.H "start time" field of State).
func processStartTime(pid int) (uint64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// Fields after the executable name (which may itself contain
	// spaces/parens) start right after the last ')'.
	i := len(data) - 1
	for i >= 0 && data[i] != ')' {
		i--
	}
	fields := splitFields(string(data[i+2:]))
	const startTimeField = 19 // 0-indexed from field 3 (state) onward: pos 22-3=19
	if startTimeField >= len(fields) {
		return 0, fmt.Errorf("libcontainer: unexpected /proc/%d/stat format", pid)
	}
	var v uint64
	_, err = fmt.Sscanf(fields[startTimeField], "%d", &v)
	return v, err
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
