package process

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/capabilities"
	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/namespaces"
	"github.com/cellarium-oci/crucible/libcontainer/rootfs"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// RunInit is the entry point cmd/crucible dispatches to when
// os.Args[1] == string(RoleInit). It is the last birth-protocol stage
// (4.G steps 9-14): it joins the mount namespace last per NamespaceOrder,
// runs the rootfs pipeline, applies rlimits and identity, drops
// capabilities, reports readiness to main, and finally execve's the
// configured workload.
func RunInit(surface system.Surface) error {
	initChild := adoptChannel(3)
	defer initChild.Close()

	mainSender := NewMainSender(initChild)
	initRecv := NewInitReceiver(initChild)

	payload, err := initRecv.WaitForBootstrap()
	if err != nil {
		return err
	}
	boot, err := decodeBootstrap(payload)
	if err != nil {
		return err
	}
	cfg := boot.Config

	if n, ok := cfg.Namespaces.Get(configs.NEWNS); ok {
		if n.IsPrivate() {
			if err := surface.Unshare(configs.NEWNS.CloneFlag()); err != nil {
				return fmt.Errorf("process: unsharing mount namespace: %w", err)
			}
		} else {
			if err := namespaces.EnterPaths(surface, configs.Namespaces{n}); err != nil {
				return err
			}
		}
	}

	// The notify socket must be bound against the host-visible path
	// before pivot_root makes boot.StateDir unreachable; the bound fd
	// itself, unlike the path, survives the pivot and close_range below
	// untouched, the same way runc's exec fifo is opened ahead of the
	// rootfs switch.
	var notifyFd int = -1
	if boot.StateDir != "" {
		notifyFd, err = bindNotify(boot.StateDir)
		if err != nil {
			return err
		}
	}

	if err := rootfs.Prepare(surface, cfg); err != nil {
		return fmt.Errorf("process: preparing rootfs: %w", err)
	}

	if err := capabilities.Validate(cfg.Capabilities); err != nil {
		return err
	}

	for _, rl := range cfg.Rlimits {
		if err := surface.SetRlimit(rl.Type, rl.Soft, rl.Hard); err != nil {
			return fmt.Errorf("process: setting rlimit %d: %w", rl.Type, err)
		}
	}

	proc := cfg.Process
	if proc == nil {
		return fmt.Errorf("process: config has no workload to execute")
	}

	if len(proc.AdditionalGroups) > 0 {
		if err := surface.SetGroups(proc.AdditionalGroups); err != nil {
			return fmt.Errorf("process: setting additional groups: %w", err)
		}
	}

	// PR_SET_KEEPCAPS survives the uid/gid change only long enough for
	// SetCapability below to re-apply the configured sets; without it
	// a non-root SetID would silently drop every capability that
	// survives to Effective/Permitted.
	if proc.UID != 0 || proc.GID != 0 {
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("process: setting keepcaps: %w", err)
		}
	}
	if err := surface.SetID(proc.UID, proc.GID); err != nil {
		return fmt.Errorf("process: setting process identity: %w", err)
	}

	if err := capabilities.Drop(surface, cfg.Capabilities); err != nil {
		return err
	}

	if cfg.NoNewPrivileges {
		if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("process: setting no_new_privs: %w", err)
		}
	}

	if err := mainSender.InitReady(int32(os.Getpid())); err != nil {
		return fmt.Errorf("process: reporting init ready: %w", err)
	}
	// The channel fd (3) is closed here, before close_range(3, ...)
	// below would otherwise close it out from under the open
	// net.UnixConn; nothing is sent or received over it past this
	// point.
	initChild.Close()

	var preserve []uintptr
	if notifyFd >= 0 {
		preserve = append(preserve, uintptr(notifyFd))
	}
	if err := surface.CloseRange(3, preserve...); err != nil {
		return fmt.Errorf("process: closing inherited fds: %w", err)
	}

	if err := os.Chdir(proc.Cwd); err != nil {
		return fmt.Errorf("process: chdir into %s: %w", proc.Cwd, err)
	}

	if notifyFd >= 0 {
		if err := waitNotify(notifyFd); err != nil {
			return err
		}
	}

	if err := unix.Exec(proc.Args[0], proc.Args, proc.Env); err != nil {
		_ = mainSender.ExecFailed(err.Error())
		return fmt.Errorf("process: exec %s: %w", proc.Args[0], err)
	}
	return nil
}

// bindNotify binds and listens on "<stateDir>/notify.sock", the
// create/start split's rendezvous point (4.K "start"): create leaves
// init blocked in accept, and start connects and writes any non-empty
// byte sequence to release it.
func bindNotify(stateDir string) (int, error) {
	path := filepath.Join(stateDir, "notify.sock")
	_ = os.Remove(path)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("process: creating notify socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("process: binding notify socket %s: %w", path, err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("process: listening on notify socket %s: %w", path, err)
	}
	return fd, nil
}

// waitNotify blocks in accept until the Start operation connects, then
// reads to EOF before proceeding to exec, mirroring the notify
// protocol in §6.
func waitNotify(fd int) error {
	defer unix.Close(fd)
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return fmt.Errorf("process: accepting notify connection: %w", err)
	}
	defer unix.Close(nfd)
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(nfd, buf)
		if n <= 0 || err != nil {
			break
		}
	}
	return nil
}
