// Package libcontainer ties the Message Channel, Namespace Controller,
// Rootfs Pipeline, Cgroup Manager, and Container State Store into the
// Builder and Operations surface (4.H-4.K): Create/Load construct or
// reattach to a Container, and its methods drive the birth protocol
// and the running container's lifecycle. Grounded on the teacher
// repo's process_linux.go vocabulary (parentProcess/initProcess state
// machine) and the original_source container/*.rs builder split,
// fused into Go's simpler non-reexecing-factory idiom.
package libcontainer

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/criu"
	"github.com/cellarium-oci/crucible/libcontainer/intelrdt"
	"github.com/cellarium-oci/crucible/libcontainer/process"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// Container is one entry in a state root: a container id, its
// resolved configuration, and the managers (cgroup, intelrdt) that
// hold its resource-control state for the process lifetime of this
// runtime invocation.
type Container struct {
	id       string
	stateDir string
	bundle   string
	config   *configs.Config

	cgroupMgr  cgroups.Manager
	intelrdtMgr *intelrdt.Manager
	surface    system.Surface

	state *State
}

func (c *Container) ID() string            { return c.id }
func (c *Container) Config() *configs.Config { return c.config }
func (c *Container) StateDir() string      { return c.stateDir }

// Status reports the container's current lifecycle state: Stopped when
// there is no recorded init pid or that pid no longer answers signal 0;
// otherwise Created, Paused or Running from the Started and Paused
// flags of the saved State. The cgroup and its freezer are not
// consulted (4.H "Status derivation").
func (c *Container) Status() (Status, error) {
	if c.state.InitProcessPid == 0 {
		return Stopped, nil
	}
	if !processAlive(c.state.InitProcessPid) {
		return Stopped, nil
	}
	if !c.state.Started {
		return Created, nil
	}
	if c.state.Paused {
		return Paused, nil
	}
	return Running, nil
}

func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// State returns the current on-disk state record, refreshed with a
// live status computation.
func (c *Container) State() (*State, Status, error) {
	status, err := c.Status()
	if err != nil {
		return nil, Stopped, err
	}
	return c.state, status, nil
}

// Signal delivers sig to the init process.
func (c *Container) Signal(sig unix.Signal) error {
	if c.state.InitProcessPid == 0 {
		return fmt.Errorf("libcontainer: container %s has no init process", c.id)
	}
	if err := unix.Kill(c.state.InitProcessPid, sig); err != nil {
		return fmt.Errorf("libcontainer: signaling pid %d: %w", c.state.InitProcessPid, err)
	}
	return nil
}

// Pause freezes every process in the container's cgroup.
func (c *Container) Pause() error {
	if c.cgroupMgr == nil {
		return fmt.Errorf("libcontainer: container %s has no cgroup manager", c.id)
	}
	if err := c.cgroupMgr.Freeze(configs.Frozen); err != nil {
		return err
	}
	c.state.Paused = true
	return saveState(c.stateDir, c.state)
}

// Resume thaws a previously paused container.
func (c *Container) Resume() error {
	if c.cgroupMgr == nil {
		return fmt.Errorf("libcontainer: container %s has no cgroup manager", c.id)
	}
	if err := c.cgroupMgr.Freeze(configs.Thawed); err != nil {
		return err
	}
	c.state.Paused = false
	return saveState(c.stateDir, c.state)
}

// Pids lists every process currently in the container's cgroup.
func (c *Container) Pids() ([]int, error) {
	if c.cgroupMgr == nil {
		return nil, fmt.Errorf("libcontainer: container %s has no cgroup manager", c.id)
	}
	return c.cgroupMgr.GetPids()
}

// Stats returns the cgroup resource usage snapshot.
func (c *Container) Stats() (*cgroups.Stats, error) {
	if c.cgroupMgr == nil {
		return nil, fmt.Errorf("libcontainer: container %s has no cgroup manager", c.id)
	}
	return c.cgroupMgr.GetStats()
}

// Start connects to the container's notify socket and writes the
// start signal, releasing an init process blocked in accept so it
// proceeds to execve the workload (4.K "start"). Create already did
// the actual clone/namespace/rootfs work; Start only ever flips
// "created" to "running".
func (c *Container) Start() error {
	sock := filepath.Join(c.stateDir, "notify.sock")
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return fmt.Errorf("libcontainer: connecting to notify socket %s: %w", sock, err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("start container")); err != nil {
		return fmt.Errorf("libcontainer: writing to notify socket %s: %w", sock, err)
	}
	c.state.Started = true
	return saveState(c.stateDir, c.state)
}

// Destroy tears down every resource this container's Create left
// behind: it signals and reaps the init process if still alive,
// removes the cgroup and intelrdt group, and deletes the state
// directory. Safe to call more than once (4.K "Delete").
func (c *Container) Destroy(force bool) error {
	status, err := c.Status()
	if err != nil {
		return err
	}
	if status != Stopped {
		if !force {
			return fmt.Errorf("libcontainer: container %s is %s, use force to delete", c.id, status)
		}
		_ = c.Signal(unix.SIGKILL)
		waitExit(c.state.InitProcessPid, 5*time.Second)
	}
	if c.cgroupMgr != nil {
		if err := c.cgroupMgr.Destroy(); err != nil {
			return fmt.Errorf("libcontainer: destroying cgroup: %w", err)
		}
	}
	if c.intelrdtMgr != nil {
		if err := c.intelrdtMgr.Destroy(); err != nil {
			return fmt.Errorf("libcontainer: destroying intelrdt group: %w", err)
		}
	}
	if err := os.RemoveAll(c.stateDir); err != nil {
		return fmt.Errorf("libcontainer: removing state dir %s: %w", c.stateDir, err)
	}
	return nil
}

// Wait blocks until the init process exits, for the non-detached "run"
// verb's foreground wait (5. Concurrency model: "waitpid(intermediate)
// — main waits until intermediate reaps" generalizes to init here,
// since CLONE_PARENT reparents init directly to this process).
func (c *Container) Wait() (int, error) {
	var ws unix.WaitStatus
	_, err := unix.Wait4(c.state.InitProcessPid, &ws, 0, nil)
	if err != nil {
		return -1, fmt.Errorf("libcontainer: waiting for pid %d: %w", c.state.InitProcessPid, err)
	}
	return ws.ExitStatus(), nil
}

// Exec runs an additional process inside the container's existing
// namespaces (§6 "exec"), joining every namespace pid 1 entered via
// /proc/<pid>/ns/*.
func (c *Container) Exec(proc *configs.Process) (int, error) {
	if c.state.InitProcessPid == 0 || !processAlive(c.state.InitProcessPid) {
		return 0, fmt.Errorf("libcontainer: container %s is not running", c.id)
	}
	paths := make(map[configs.NamespaceType]string, len(c.config.Namespaces))
	for _, t := range configs.NamespaceOrder {
		if _, ok := c.config.Namespaces.Get(t); ok {
			paths[t] = fmt.Sprintf("/proc/%d/ns/%s", c.state.InitProcessPid, nsFile(t))
		}
	}
	return process.StartTenant(paths, proc, c.config.Capabilities)
}

func nsFile(t configs.NamespaceType) string {
	switch t {
	case configs.NEWNET:
		return "net"
	case configs.NEWPID:
		return "pid"
	case configs.NEWNS:
		return "mnt"
	case configs.NEWUTS:
		return "uts"
	case configs.NEWIPC:
		return "ipc"
	case configs.NEWUSER:
		return "user"
	case configs.NEWCGROUP:
		return "cgroup"
	case configs.NEWTIME:
		return "time"
	default:
		return string(t)
	}
}

// Checkpoint dumps the container's process tree via CRIU, optionally
// leaving it running (§6 "checkpoint").
func (c *Container) Checkpoint(opts criu.Opts) error {
	if c.state.InitProcessPid == 0 {
		return fmt.Errorf("libcontainer: container %s has no init process", c.id)
	}
	if err := criu.Dump(c.state.InitProcessPid, opts); err != nil {
		return fmt.Errorf("libcontainer: checkpointing container %s: %w", c.id, err)
	}
	if !opts.LeaveRunning && !opts.PreDump {
		c.state.InitProcessPid = 0
		return saveState(c.stateDir, c.state)
	}
	return nil
}

// Restore resumes a container previously checkpointed into
// opts.ImagesDirectory (§6 "restore").
func (c *Container) Restore(opts criu.Opts) error {
	return criu.Restore(opts)
}

func waitExit(pid int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
