package process

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Role names the re-exec subcommand each cloned process runs; the
// binary dispatches on os.Args[0]/[1] in main() (cmd/crucible/main.go)
// before the Go runtime has done anything the clone/exec sequence
// would otherwise make unsafe.
type Role string

const (
	RoleIntermediate Role = "__crucible-intermediate"
	RoleInit         Role = "__crucible-init"
	RoleTenant       Role = "__crucible-tenant"
)

// CloneOpts parametrizes one clone + immediate re-exec.
type CloneOpts struct {
	// Role selects which hidden subcommand argv[1] carries.
	Role Role
	// ExtraFiles are inherited by the child at fd 3, 4, 5, ... in
	// order (mirrors exec.Cmd.ExtraFiles numbering).
	ExtraFiles []*os.File
	// Sibling requests CLONE_PARENT: the new process's parent becomes
	// this process's own parent, not this process (4.G: used only for
	// the intermediate -> init clone, so init is reparented to main
	// and outlives the intermediate).
	Sibling bool

	// NamespaceFlags ORs in CLONE_NEW* bits so the child is created
	// directly inside new namespaces rather than inheriting the
	// caller's (4.G: main clones the intermediate process straight
	// into a fresh user+pid namespace this way).
	NamespaceFlags uintptr
}

// CloneError reports a failure from either the clone3 or legacy-clone
// path (4.G "clone3(2) ... on ENOSYS, fall back to clone(2)").
type CloneError struct {
	Op  string
	Err error
}

func (e *CloneError) Error() string { return fmt.Sprintf("clone: %s: %v", e.Op, e.Err) }
func (e *CloneError) Unwrap() error { return e.Err }

// clone3Args mirrors struct clone_args from linux/sched.h; there is no
// unix.Clone3 wrapper in golang.org/x/sys, so the raw layout is used
// directly with the SYS_CLONE3 syscall number, exactly as the youki
// reference does from Rust (original_source/crates/libcontainer/src/
// process/fork.rs).
type clone3Args struct {
	flags     uint64
	pidfd     uint64
	childTid  uint64
	parentTid uint64
	exitSignal uint64
	stack     uint64
	stackSize uint64
	tls       uint64
	setTid    uint64
	setTidSize uint64
	cgroup    uint64
}

// execArgs holds argv0/argv/envv already converted to the raw,
// NUL-terminated pointer arrays execve(2) takes, built once in the
// parent before the clone so the cloned child never has to allocate
// anything to exec (4.G / async-signal-safety, see childExec).
type execArgs struct {
	path *byte
	argv []*byte
	envv []*byte
}

// prepareExec converts argv/envv to raw pointers up front. Every
// pointer here is produced by a normal Go allocation, which is exactly
// why this must run in the parent, before Clone ever calls clone3: the
// cloned child is forbidden from allocating anything before execve,
// and by the time it runs, this slice is already-reachable memory, not
// a fresh allocation.
func prepareExec(argv, envv []string) (execArgs, error) {
	path, err := unix.BytePtrFromString(argv[0])
	if err != nil {
		return execArgs{}, fmt.Errorf("process: converting argv0: %w", err)
	}
	argvp, err := unix.SlicePtrFromStrings(argv)
	if err != nil {
		return execArgs{}, fmt.Errorf("process: converting argv: %w", err)
	}
	envvp, err := unix.SlicePtrFromStrings(envv)
	if err != nil {
		return execArgs{}, fmt.Errorf("process: converting envv: %w", err)
	}
	return execArgs{path: path, argv: argvp, envv: envvp}, nil
}

// Clone forks a new process that immediately execve's itself back into
// this same binary under opts.Role, with opts.ExtraFiles dup'd onto
// fds 3.. in order.
//
// Go cannot safely run arbitrary Go code in a cloned child before its
// runtime is reinitialized (no live m/g0, GC and signal handling both
// assume a fully started runtime) — exactly the problem youki's
// hand-rolled clone3+mmap'd-stack path solves for Rust by running only
// a tiny callback before calling _exit. The idiomatic Go analogue,
// used here, is to do only async-signal-safe raw syscalls (dup3, then
// execve) between clone and the point where a fresh runtime takes
// over in the new process image — the same sequence the Go runtime's
// own syscall.forkAndExecInChild uses internally for exec.Cmd. This is
// why Clone is implemented with raw syscalls instead of exec.Cmd: we
// need CLONE_PARENT (Sibling), which exec.Cmd's SysProcAttr does not
// expose.
func Clone(opts CloneOpts) (pid int, err error) {
	argv := append([]string{os.Args[0]}, string(opts.Role))
	envv := os.Environ()

	// Build every pointer childExec will need while it's still safe to
	// allocate; nothing after this point may allocate in the child.
	exec, err := prepareExec(argv, envv)
	if err != nil {
		return 0, err
	}

	fds := make([]uintptr, len(opts.ExtraFiles))
	for i, f := range opts.ExtraFiles {
		fds[i] = f.Fd()
	}

	flags := uint64(opts.NamespaceFlags)
	if opts.Sibling {
		flags |= unix.CLONE_PARENT
	}

	// Locking the OS thread across the raw clone call keeps Go from
	// rescheduling this goroutine onto a different thread mid-syscall,
	// which would be observed by the child as a torn thread state.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pid, err = clone3(flags, exec, fds)
	if err == unix.ENOSYS {
		pid, err = cloneLegacy(flags, exec, fds)
	}
	if err != nil {
		return 0, &CloneError{Op: "clone", Err: err}
	}
	return pid, nil
}

func clone3(flags uint64, exec execArgs, fds []uintptr) (int, error) {
	args := clone3Args{flags: flags}
	// clone3 refuses an exit_signal when CLONE_PARENT is set; legacy
	// clone silently ignores the bits in the glibc wrapper, so the
	// sibling case always leaves exit_signal at 0 and the non-sibling
	// case sets SIGCHLD (4.G).
	if flags&unix.CLONE_PARENT == 0 {
		args.exitSignal = uint64(unix.SIGCHLD)
	}

	ret, _, errno := unix.Syscall(unix.SYS_CLONE3, uintptr(unsafe.Pointer(&args)), unsafe.Sizeof(args), 0)
	if errno != 0 {
		return 0, errno
	}
	if ret == 0 {
		// Child: only async-signal-safe operations from here until
		// execve replaces the process image.
		childExec(exec, fds)
		// childExec only returns on failure; there is nothing safe
		// left to do but die immediately without running finalizers,
		// deferred Go cleanup, or anything else that assumes a live
		// runtime.
		unix.RawSyscall(unix.SYS_EXIT, 127, 0, 0)
	}
	return int(ret), nil
}

// cloneLegacy falls back to the classic clone(2) syscall. Because this
// clone does not set CLONE_VM, the child gets its own copy-on-write
// address space exactly like fork(2) — the "must supply a child
// stack" restriction belongs to glibc's clone() wrapper, not the raw
// kernel syscall, so calling it directly (as we do, via unix.Syscall)
// with stack=0 is well-defined here, unlike the youki Rust
// implementation which goes through the wrapper and therefore must
// mmap an explicit 8MiB stack with a guard page.
func cloneLegacy(flags uint64, exec execArgs, fds []uintptr) (int, error) {
	sig := uint64(0)
	if flags&unix.CLONE_PARENT == 0 {
		sig = uint64(unix.SIGCHLD)
	}
	ret, _, errno := unix.Syscall(unix.SYS_CLONE, uintptr(flags|sig), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	if ret == 0 {
		childExec(exec, fds)
		unix.RawSyscall(unix.SYS_EXIT, 127, 0, 0)
	}
	return int(ret), nil
}

// childExec dup3's fds onto 3, 4, 5... in order and raw-execve's the
// already-prepared argv/envv. Every call here must remain
// async-signal-safe: no allocation, no channel sends, no logging —
// exec's pointer arrays were built by prepareExec before the clone
// specifically so this function never has to touch the Go allocator.
func childExec(exec execArgs, fds []uintptr) {
	for i, fd := range fds {
		target := uintptr(3 + i)
		if fd != target {
			unix.RawSyscall(unix.SYS_DUP3, fd, target, 0)
		}
	}
	unix.RawSyscall(unix.SYS_EXECVE,
		uintptr(unsafe.Pointer(exec.path)),
		uintptr(unsafe.Pointer(&exec.argv[0])),
		uintptr(unsafe.Pointer(&exec.envv[0])))
}
