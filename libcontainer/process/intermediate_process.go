package process

import (
	"fmt"
	"os"

	"github.com/cellarium-oci/crucible/libcontainer/cgroups"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/namespaces"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// RunIntermediate is the entry point cmd/crucible dispatches to when
// os.Args[1] == string(RoleIntermediate). It recovers the channel fds
// Clone dup'd into this process image at 3 and 4 (its own comm channel
// to main, and the not-yet-used init channel it will pass on), joins
// the container's cgroup, reports readiness, joins or creates every
// namespace this stage owns, and finally clones init as a CLONE_PARENT
// sibling so init outlives this process once it exits (4.G steps 1-10).
func RunIntermediate(surface system.Surface) error {
	miChild := adoptChannel(3)
	initChild := adoptFile(4)
	defer miChild.Close()

	mainSender := NewMainSender(miChild)
	intermediateRecv := NewIntermediateReceiver(miChild)

	payload, err := intermediateRecv.WaitForBootstrap()
	if err != nil {
		return err
	}
	boot, err := decodeBootstrap(payload)
	if err != nil {
		return err
	}
	cfg := boot.Config

	// Join or create the cgroup first, while still running with the
	// host's original privileges and before any namespace has been
	// entered (4.G Intermediate step 1). Init, cloned later by this
	// process (as its sibling, via CLONE_PARENT), inherits this process's
	// cgroup membership at clone time, so it
	// never needs a separate join of its own; doing this after
	// unsharing the user namespace would instead require the write to
	// cross into an unprivileged namespace the caller can't reach.
	cgroupMgr, err := cgroups.NewManager(cfg.Cgroups)
	if err != nil {
		return fmt.Errorf("process: constructing cgroup manager: %w", err)
	}
	if err := cgroupMgr.Apply(os.Getpid()); err != nil {
		return fmt.Errorf("process: joining cgroup: %w", err)
	}

	if err := mainSender.IntermediateReady(int32(os.Getpid())); err != nil {
		return fmt.Errorf("process: reporting intermediate ready: %w", err)
	}

	if cfg.Namespaces.Contains(configs.NEWUSER) {
		if err := mainSender.IdentifierMappingRequest(); err != nil {
			return fmt.Errorf("process: requesting id mapping: %w", err)
		}
		if err := intermediateRecv.WaitForMappingAck(); err != nil {
			return err
		}
	}

	// NEWUSER and NEWPID were already created directly by main's clone3
	// call (4.G step 2); this process now joins any path-based
	// namespace entries, then creates every other private namespace
	// (net, ipc, uts, cgroup, time) it is responsible for. Mount is
	// deliberately left for init to create last, just before the
	// rootfs pipeline runs, per NamespaceOrder.
	if err := namespaces.EnterPaths(surface, cfg.Namespaces); err != nil {
		return err
	}
	if err := namespaces.Unshare(surface, remainingNamespaces(cfg.Namespaces)); err != nil {
		return err
	}
	if err := namespaces.ApplyUTS(surface, cfg.Namespaces, cfg.Hostname, cfg.Domainname); err != nil {
		return err
	}

	if len(cfg.NetDevices) > 0 {
		if err := mainSender.NamespacesReady(); err != nil {
			return fmt.Errorf("process: reporting namespaces ready: %w", err)
		}
		if err := intermediateRecv.WaitForNamespacesReadyAck(); err != nil {
			return err
		}
	}

	initPid, err := Clone(CloneOpts{
		Role:       RoleInit,
		Sibling:    true,
		ExtraFiles: []*os.File{initChild},
	})
	if err != nil {
		return fmt.Errorf("process: cloning init: %w", err)
	}
	initChild.Close()
	_ = initPid

	return nil
}

// remainingNamespaces returns every entry of ns except NEWUSER and
// NEWPID, which main's clone3 call already created directly (unsharing
// them again here would be a redundant, and on some kernels rejected,
// second CLONE_NEWUSER), and NEWNS, which init creates itself.
func remainingNamespaces(ns configs.Namespaces) configs.Namespaces {
	out := make(configs.Namespaces, 0, len(ns))
	for _, n := range ns {
		if n.Type == configs.NEWUSER || n.Type == configs.NEWPID || n.Type == configs.NEWNS {
			continue
		}
		out = append(out, n)
	}
	return out
}

func adoptChannel(fd uintptr) *Channel {
	ch, err := AdoptChannel(fd)
	if err != nil {
		// The fd was set up by our own Clone call moments ago; a
		// failure here means the process image itself is broken, not
		// a recoverable runtime condition.
		panic(fmt.Sprintf("process: adopting inherited channel fd %d: %v", fd, err))
	}
	return ch
}

func adoptFile(fd uintptr) *os.File {
	return os.NewFile(fd, "channel")
}
