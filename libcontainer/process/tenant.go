package process

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/capabilities"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/namespaces"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// tenantBootstrapData is the one message a tenant process receives
// before it joins the target container's namespaces: which namespace
// paths to enter and the process it should ultimately execve.
type tenantBootstrapData struct {
	NamespacePaths map[configs.NamespaceType]string `json:"namespace_paths"`
	Process        *configs.Process                 `json:"process"`
	Capabilities   *configs.Capabilities             `json:"capabilities,omitempty"`
}

// StartTenant runs an additional process inside an already-running
// container's namespaces (§6 "exec"), grounded on the youki reference's
// tenant_builder split between init and exec processes
// (original_source/crates/libcontainer/src/process/container_intermediate_process.rs
// and tenant_builder.rs) but collapsed into a single clone since Go
// has no equivalent of a pre-existing pid namespace fork chain to
// thread through — a tenant process joins every target namespace via
// setns(2) directly, it never creates its own.
func StartTenant(nsPaths map[configs.NamespaceType]string, proc *configs.Process, caps *configs.Capabilities) (int, error) {
	parent, child, err := NewPair()
	if err != nil {
		return 0, fmt.Errorf("process: creating tenant channel: %w", err)
	}
	defer parent.Close()

	b, err := json.Marshal(tenantBootstrapData{NamespacePaths: nsPaths, Process: proc, Capabilities: caps})
	if err != nil {
		return 0, fmt.Errorf("process: encoding tenant bootstrap: %w", err)
	}

	pid, err := Clone(CloneOpts{
		Role:       RoleTenant,
		ExtraFiles: []*os.File{fileOf(child)},
	})
	if err != nil {
		return 0, fmt.Errorf("process: cloning tenant: %w", err)
	}
	child.Close()

	if err := parent.Send(Bootstrap(string(b))); err != nil {
		return 0, fmt.Errorf("process: sending tenant bootstrap: %w", err)
	}

	m, err := parent.Recv()
	if err != nil {
		return 0, fmt.Errorf("process: waiting for tenant ready: %w", err)
	}
	switch m.Kind {
	case KindTenantReady:
		return int(m.Pid), nil
	case KindExecFailed:
		return 0, fmt.Errorf("process: tenant exec failed: %s", m.Text)
	default:
		return 0, &UnexpectedMessageError{Expected: KindTenantReady, Received: m}
	}
}

// RunTenant is the entry point cmd/crucible dispatches to when
// os.Args[1] == string(RoleTenant).
func RunTenant(surface system.Surface) error {
	ch := adoptChannel(3)
	defer ch.Close()

	m, err := ch.Recv()
	if err != nil {
		return fmt.Errorf("process: receiving tenant bootstrap: %w", err)
	}
	if m.Kind != KindBootstrap {
		return &UnexpectedMessageError{Expected: KindBootstrap, Received: m}
	}
	var boot tenantBootstrapData
	if err := json.Unmarshal([]byte(m.Text), &boot); err != nil {
		return fmt.Errorf("process: decoding tenant bootstrap: %w", err)
	}

	var ns configs.Namespaces
	for t, path := range boot.NamespacePaths {
		ns = append(ns, configs.Namespace{Type: t, Path: path})
	}
	if err := namespaces.EnterPaths(surface, ns); err != nil {
		return err
	}

	proc := boot.Process
	if proc.UID != 0 || proc.GID != 0 {
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("process: setting keepcaps: %w", err)
		}
	}
	if len(proc.AdditionalGroups) > 0 {
		if err := surface.SetGroups(proc.AdditionalGroups); err != nil {
			return fmt.Errorf("process: setting additional groups: %w", err)
		}
	}
	if err := surface.SetID(proc.UID, proc.GID); err != nil {
		return fmt.Errorf("process: setting tenant identity: %w", err)
	}
	if boot.Capabilities != nil {
		if err := capabilities.Drop(surface, boot.Capabilities); err != nil {
			return err
		}
	}

	if err := ch.Send(TenantReady(int32(os.Getpid()))); err != nil {
		return fmt.Errorf("process: reporting tenant ready: %w", err)
	}
	ch.Close()

	if err := os.Chdir(proc.Cwd); err != nil {
		return fmt.Errorf("process: chdir into %s: %w", proc.Cwd, err)
	}
	if err := unix.Exec(proc.Args[0], proc.Args, proc.Env); err != nil {
		return fmt.Errorf("process: exec %s: %w", proc.Args[0], err)
	}
	return nil
}
