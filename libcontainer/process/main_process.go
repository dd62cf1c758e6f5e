package process

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/namespaces"
	"github.com/cellarium-oci/crucible/libcontainer/userns"
)

// Start runs the main-process side of the birth protocol (4.G steps
// 1-6, 13-14): it clones the intermediate process directly into a
// fresh user+pid namespace, writes the configured uid/gid mappings
// once the intermediate reports ready, waits for init's own readiness
// signal, and returns init's pid — the pid the Container State Store
// records as the container's pid 1. Cgroup membership is joined by the
// intermediate process itself, as its very first step, before this
// function ever sees a pid to apply one to.
//
// Stages, matching 4.G:
//  1. create the main<->intermediate and main<->init channels
//  2. clone the intermediate process into NEWUSER|NEWPID (if
//     configured)
//  3. wait for IntermediateReady(pid) — pid is intermediate's own pid,
//     whose user namespace init later shares as its sibling
//  4. write uid_map/gid_map (and setgroups deny) for that pid
//  5. ack MappingWritten so intermediate can proceed past the barrier
//  6. wait for InitReady from init (no seccomp notify exchange takes
//     place on this channel)
//  7. return init's pid
func Start(cfg *configs.Config, args *Args) (int, error) {
	miParent, miChild, err := NewPair()
	if err != nil {
		return 0, fmt.Errorf("process: creating main<->intermediate channel: %w", err)
	}
	defer miParent.Close()

	initParent, initChild, err := NewPair()
	if err != nil {
		return 0, fmt.Errorf("process: creating main<->init channel: %w", err)
	}
	defer initParent.Close()

	mainRecvI := NewMainReceiver(miParent)
	intermediateAck := NewIntermediateSender(miParent)
	mainRecvInit := NewMainReceiver(initParent)
	initSender := NewInitSender(initParent)

	bootstrap, err := encodeBootstrap(args)
	if err != nil {
		return 0, err
	}
	if err := intermediateAck.Bootstrap(bootstrap); err != nil {
		return 0, fmt.Errorf("process: sending bootstrap to intermediate: %w", err)
	}
	if err := initSender.Bootstrap(bootstrap); err != nil {
		return 0, fmt.Errorf("process: sending bootstrap to init: %w", err)
	}

	// Set before the first Clone so every subsequent re-exec'd stage
	// inherits them via its own os.Environ() (each stage's environment
	// is whatever its exec call received, which traces back to this
	// process's environment at the moment it called Clone).
	os.Setenv(EnvStateDir, args.StateDir)
	os.Setenv(EnvContainerID, args.ContainerID)

	var nsFlags uintptr
	if cfg.Namespaces.Contains(configs.NEWUSER) {
		nsFlags |= configs.NEWUSER.CloneFlag()
	}
	if cfg.Namespaces.Contains(configs.NEWPID) {
		nsFlags |= configs.NEWPID.CloneFlag()
	}

	intermediatePid, err := Clone(CloneOpts{
		Role:           RoleIntermediate,
		NamespaceFlags: nsFlags,
		ExtraFiles:     []*os.File{fileOf(miChild), fileOf(initChild)},
	})
	if err != nil {
		return 0, fmt.Errorf("process: cloning intermediate: %w", err)
	}
	// The copies this process holds of the child-side endpoints are no
	// longer needed once the clone has inherited its own duplicates.
	miChild.Close()
	initChild.Close()

	pid, err := mainRecvI.WaitForIntermediateReady()
	if err != nil {
		return 0, fmt.Errorf("process: waiting for intermediate ready: %w", err)
	}
	if int(pid) != intermediatePid {
		return 0, fmt.Errorf("process: intermediate reported pid %d, expected %d", pid, intermediatePid)
	}

	if cfg.Namespaces.Contains(configs.NEWUSER) {
		if err := mainRecvI.WaitForMappingRequest(); err != nil {
			return 0, err
		}
		mode := userns.WriteDirect
		if len(cfg.UIDMappings) > 1 || len(cfg.GIDMappings) > 1 {
			mode = userns.WriteHelper
		}
		if err := userns.Write(intermediatePid, cfg.UIDMappings, cfg.GIDMappings, mode); err != nil {
			return 0, fmt.Errorf("process: writing id mappings: %w", err)
		}
		if err := intermediateAck.MappingWritten(); err != nil {
			return 0, fmt.Errorf("process: acking mapping written: %w", err)
		}
	}

	// Intermediate unshares its own network namespace (among others)
	// after the mapping barrier above; moving a configured host
	// interface into it must happen from a process still in the host
	// netns (this one) and only once that target netns exists, so main
	// waits for intermediate's readiness signal before touching
	// anything, then acks so intermediate can proceed to clone init.
	if len(cfg.NetDevices) > 0 {
		if err := mainRecvI.WaitForNamespacesReady(); err != nil {
			return 0, err
		}
		if err := namespaces.MoveNetDevices(intermediatePid, cfg.NetDevices); err != nil {
			return 0, fmt.Errorf("process: moving net devices into pid %d: %w", intermediatePid, err)
		}
		if err := intermediateAck.NamespacesReadyAck(); err != nil {
			return 0, fmt.Errorf("process: acking namespaces ready: %w", err)
		}
	}

	pid32, err := mainRecvInit.WaitForInitReady()
	if err != nil {
		return 0, fmt.Errorf("process: waiting for init ready: %w", err)
	}
	initPid := int(pid32)

	if args.PidFile != "" {
		if err := os.WriteFile(args.PidFile, []byte(strconv.Itoa(initPid)), 0o644); err != nil {
			return 0, fmt.Errorf("process: writing pidfile %s: %w", args.PidFile, err)
		}
	}

	return initPid, nil
}

func fileOf(c *Channel) *os.File {
	return os.NewFile(c.Fd(), "channel")
}
