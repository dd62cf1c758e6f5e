package libcontainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Status is one of the four lifecycle states the Operations surface
// (4.K) reports and transitions between.
type Status int

const (
	Created Status = iota
	Running
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// State is the Container State Store's on-disk record (4.H):
// everything needed to reattach to, query, or tear down a container
// after the process that created it has exited. Written atomically to
// "<stateDir>/state.json" on every transition.
type State struct {
	ID      string          `json:"id"`
	Bundle  string          `json:"bundle"`
	Config  *configs.Config `json:"config"`
	Created time.Time       `json:"created"`

	InitProcessPid       int    `json:"init_process_pid"`
	InitProcessStartTime uint64 `json:"init_process_start_time"`

	CgroupPaths map[string]string `json:"cgroup_paths,omitempty"`

	Rootless bool `json:"rootless,omitempty"`

	// Paused tracks the last Pause/Resume call this runtime issued;
	// the freezer subsystem itself has no "query current state" read
	// uniform across v1/v2/systemd, so the state store is authoritative
	// instead (4.H).
	Paused bool `json:"paused,omitempty"`

	// Started distinguishes "created" (init alive, blocked on the
	// notify socket, workload never exec'd) from "running" (Start has
	// connected and init has since execve'd) — a distinction an alive
	// pid alone can't express (4.H/4.K create-vs-start split).
	Started bool `json:"started,omitempty"`
}

func stateFile(stateDir string) string { return filepath.Join(stateDir, "state.json") }

// saveState writes state to stateDir atomically: marshal to a temp
// file in the same directory, fsync, then rename over the final name,
// so a reader never observes a partially written state.json (4.H
// invariant).
func saveState(stateDir string, s *State) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("libcontainer: marshaling state: %w", err)
	}
	tmp, err := os.CreateTemp(stateDir, "state.json.tmp-*")
	if err != nil {
		return fmt.Errorf("libcontainer: creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("libcontainer: writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("libcontainer: syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("libcontainer: closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), stateFile(stateDir)); err != nil {
		return fmt.Errorf("libcontainer: renaming state file: %w", err)
	}
	return nil
}

func loadState(stateDir string) (*State, error) {
	b, err := os.ReadFile(stateFile(stateDir))
	if err != nil {
		return nil, fmt.Errorf("libcontainer: reading state: %w", err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("libcontainer: unmarshaling state: %w", err)
	}
	return &s, nil
}

// listStateDirs returns every child of root that holds a state.json,
// i.e. every known container, for the List operation (4.K).
func listStateDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("libcontainer: listing state root %s: %w", root, err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(stateFile(filepath.Join(root, e.Name()))); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
