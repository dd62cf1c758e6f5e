// Package system is the Syscall Surface (4.B): a single, mockable
// capability set exposing every privileged OS primitive the birth
// protocol and rootfs pipeline invoke. Every real implementation
// collapses to one error kind ("syscall failure"); callers attach
// context with fmt.Errorf("%w").
package system

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	capability "github.com/moby/sys/capability"
)

// Surface is the sealed capability set. There are exactly two
// implementations in this repo: Linux (real syscalls) and a mock used
// by tests — matching §9's "dynamic dispatch...use a minimal, sealed
// capability set" note.
type Surface interface {
	PivotRoot(newRoot string) error
	Chroot(path string) error
	SetNS(fd int, nsType uintptr) error
	Unshare(flags uintptr) error
	SetID(uid, gid int) error
	SetCapability(which CapSet, caps []string) error
	SetHostname(name string) error
	SetDomainname(name string) error
	SetRlimit(kind int, soft, hard uint64) error
	SetGroups(gids []int) error
	Mount(source, target, fstype string, flags uintptr, data string) error
	Mknod(path string, mode uint32, dev int) error
	Chown(path string, uid, gid int) error
	Symlink(oldname, newname string) error
	CloseRange(from uint, preserve ...uintptr) error
	GetPwUid(uid int) (string, error)
	SetIOPriority(class, prio int) error
	MountSetattr(path string, recursive bool, setAttr, clearAttr uint64) error
}

// CapSet names one of the five capability sets set_capability (4.B)
// can install.
type CapSet int

const (
	Effective CapSet = iota
	Permitted
	Inheritable
	Bounding
	Ambient
)

// Linux is the real-kernel Surface implementation.
type Linux struct{}

var _ Surface = Linux{}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("syscall failure: %s: %w", op, err)
}

func (Linux) PivotRoot(newRoot string) error {
	return wrap("pivot_root", unix.PivotRoot(newRoot, newRoot))
}

func (Linux) Chroot(path string) error {
	return wrap("chroot", unix.Chroot(path))
}

func (Linux) SetNS(fd int, nsType uintptr) error {
	return wrap("setns", unix.Setns(fd, int(nsType)))
}

func (Linux) Unshare(flags uintptr) error {
	return wrap("unshare", unix.Unshare(int(flags)))
}

// SetID changes real, effective, and saved uid/gid together, per 4.B:
// "pairs with 'keep capabilities' around the change for non-root
// targets" — the caller (init process, step 9) is responsible for
// toggling PR_SET_KEEPCAPS before/after calling SetID.
func (Linux) SetID(uid, gid int) error {
	if err := unix.Setresgid(gid, gid, gid); err != nil {
		return wrap("setresgid", err)
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		return wrap("setresuid", err)
	}
	return nil
}

// capWhich maps our CapSet to the moby/sys/capability set bit.
func capWhich(which CapSet) capability.CapType {
	switch which {
	case Permitted:
		return capability.PERMITTED
	case Inheritable:
		return capability.INHERITABLE
	case Bounding:
		return capability.BOUNDING
	case Ambient:
		return capability.AMBIENT
	default:
		return capability.EFFECTIVE
	}
}

// SetCapability installs exactly caps into the named set, dropping
// everything else from it (4.G step 12: "reset effective capabilities,
// then drop per the spec").
func (Linux) SetCapability(which CapSet, caps []string) error {
	c, err := capability.NewPid2(0)
	if err != nil {
		return wrap("capability.NewPid2", err)
	}
	if err := c.Load(); err != nil {
		return wrap("capability.Load", err)
	}
	bit := capWhich(which)
	c.Clear(bit)
	for _, name := range caps {
		v, err := capability.Parse(name)
		if err != nil {
			return wrap("capability.Parse", err)
		}
		c.Set(bit, v)
	}
	if err := c.Apply(bit); err != nil {
		return wrap("capability.Apply", err)
	}
	return nil
}

func (Linux) SetHostname(name string) error {
	return wrap("sethostname", unix.Sethostname([]byte(name)))
}

func (Linux) SetDomainname(name string) error {
	return wrap("setdomainname", unix.Setdomainname([]byte(name)))
}

func (Linux) SetRlimit(kind int, soft, hard uint64) error {
	return wrap("setrlimit", unix.Setrlimit(kind, &unix.Rlimit{Cur: soft, Max: hard}))
}

func (Linux) SetGroups(gids []int) error {
	return wrap("setgroups", unix.Setgroups(gids))
}

func (Linux) Mount(source, target, fstype string, flags uintptr, data string) error {
	return wrap("mount", unix.Mount(source, target, fstype, flags, data))
}

func (Linux) Mknod(path string, mode uint32, dev int) error {
	return wrap("mknod", unix.Mknod(path, mode, dev))
}

func (Linux) Chown(path string, uid, gid int) error {
	return wrap("chown", unix.Chown(path, uid, gid))
}

func (Linux) Symlink(oldname, newname string) error {
	return wrap("symlink", unix.Symlink(oldname, newname))
}

// CloseRange closes every fd >= from except those named in preserve,
// honoring CLOEXEC semantics via close_range(2) (4.G init step 11). A
// preserved fd (the notify listener bound before this call) survives
// by splitting the range around it, the same preserve_fds approach
// the original implementation's close_range(preserve_fds) takes.
func (Linux) CloseRange(from uint, preserve ...uintptr) error {
	ranges := splitRanges(from, preserve)
	for _, r := range ranges {
		err := unix.CloseRange(r[0], r[1], 0)
		if err == unix.ENOSYS {
			if err := closeRangeFallback(r[0], r[1]); err != nil {
				return wrap("close_range", err)
			}
			continue
		}
		if err != nil {
			return wrap("close_range", err)
		}
	}
	return nil
}

// splitRanges turns [from, +inf) minus a set of preserved fds into a
// list of closed [lo, hi] sub-ranges passable to close_range(2).
func splitRanges(from uint, preserve []uintptr) [][2]uint {
	skip := make(map[uint]bool, len(preserve))
	for _, p := range preserve {
		if uint(p) >= from {
			skip[uint(p)] = true
		}
	}
	if len(skip) == 0 {
		return [][2]uint{{from, unix.CloseRangeUnlimited}}
	}
	sorted := make([]uint, 0, len(skip))
	for fd := range skip {
		sorted = append(sorted, fd)
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	var out [][2]uint
	cur := from
	for _, fd := range sorted {
		if fd > cur {
			out = append(out, [2]uint{cur, fd - 1})
		}
		cur = fd + 1
	}
	out = append(out, [2]uint{cur, unix.CloseRangeUnlimited})
	return out
}

func closeRangeFallback(from, to uint) error {
	fd, err := os.Open("/proc/self/fd")
	if err != nil {
		return err
	}
	defer fd.Close()
	names, err := fd.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, n := range names {
		v, err := strconv.Atoi(n)
		if err != nil || uint(v) < from || (to != unix.CloseRangeUnlimited && uint(v) > to) {
			continue
		}
		unix.CloseOnExec(v)
	}
	return nil
}

// mountAttr mirrors struct mount_attr from linux/mount.h, the argument
// mount_setattr(2) takes by pointer.
type mountAttr struct {
	AttrSet     uint64
	AttrClear   uint64
	Propagation uint64
	UserNSFd    uint64
}

// MountSetattr issues mount_setattr(2) against path, applying setAttr
// as the attributes to add and clearAttr as the attributes to remove
// (both MOUNT_ATTR_* masks), recursing over every mount already
// stacked under path when recursive is set (4.D phase 3's recursive
// bind attribute machinery, e.g. a recursive readonly bind that can't
// be expressed as a single remount because submounts may carry
// different propagation).
func (Linux) MountSetattr(path string, recursive bool, setAttr, clearAttr uint64) error {
	var flags uintptr
	if recursive {
		flags = unix.AT_RECURSIVE
	}
	attr := mountAttr{AttrSet: setAttr, AttrClear: clearAttr}
	pathPtr, err := unix.BytePtrFromString(path)
	if err != nil {
		return wrap("mount_setattr", err)
	}
	_, _, errno := unix.Syscall6(unix.SYS_MOUNT_SETATTR,
		uintptr(unix.AT_FDCWD), uintptr(unsafe.Pointer(pathPtr)), flags,
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		return wrap("mount_setattr", errno)
	}
	return nil
}

func (Linux) GetPwUid(uid int) (string, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", wrap("getpwuid", err)
	}
	return u.Username, nil
}

// SetIOPriority sets the calling process's I/O priority via
// ioprio_set(2) (there's no unix.IoprioSet wrapper, so this issues the
// raw syscall directly — still routed through the Surface so tests
// can mock it).
func (Linux) SetIOPriority(class, prio int) error {
	const (
		ioprioWhoProcess = 1
		sysIoprioSet     = 251 // x86_64 syscall number
	)
	ioprio := (class << 13) | prio
	_, _, errno := unix.Syscall(sysIoprioSet, uintptr(ioprioWhoProcess), 0, uintptr(ioprio))
	if errno != 0 {
		return wrap("ioprio_set", errno)
	}
	return nil
}
