package system

import "fmt"

// Mock is a fully in-memory Surface used by tests that need to assert
// on the sequence/arguments of privileged calls without a kernel.
type Mock struct {
	Calls    []string
	FailOn   map[string]error
	Hostname string
	Domain   string
	Groups   []int
}

var _ Surface = (*Mock)(nil)

func (m *Mock) record(op string) error {
	m.Calls = append(m.Calls, op)
	if err, ok := m.FailOn[op]; ok {
		return err
	}
	return nil
}

func (m *Mock) PivotRoot(newRoot string) error { return m.record(fmt.Sprintf("pivot_root(%s)", newRoot)) }
func (m *Mock) Chroot(path string) error       { return m.record(fmt.Sprintf("chroot(%s)", path)) }
func (m *Mock) SetNS(fd int, nsType uintptr) error {
	return m.record(fmt.Sprintf("setns(%d,%d)", fd, nsType))
}
func (m *Mock) Unshare(flags uintptr) error { return m.record(fmt.Sprintf("unshare(%d)", flags)) }
func (m *Mock) SetID(uid, gid int) error    { return m.record(fmt.Sprintf("setid(%d,%d)", uid, gid)) }
func (m *Mock) SetCapability(which CapSet, caps []string) error {
	return m.record(fmt.Sprintf("setcap(%d,%v)", which, caps))
}
func (m *Mock) SetHostname(name string) error {
	m.Hostname = name
	return m.record("sethostname(" + name + ")")
}
func (m *Mock) SetDomainname(name string) error {
	m.Domain = name
	return m.record("setdomainname(" + name + ")")
}
func (m *Mock) SetRlimit(kind int, soft, hard uint64) error {
	return m.record(fmt.Sprintf("setrlimit(%d,%d,%d)", kind, soft, hard))
}
func (m *Mock) SetGroups(gids []int) error {
	m.Groups = gids
	return m.record(fmt.Sprintf("setgroups(%v)", gids))
}
func (m *Mock) Mount(source, target, fstype string, flags uintptr, data string) error {
	return m.record(fmt.Sprintf("mount(%s,%s,%s,%d,%s)", source, target, fstype, flags, data))
}
func (m *Mock) Mknod(path string, mode uint32, dev int) error {
	return m.record(fmt.Sprintf("mknod(%s,%d,%d)", path, mode, dev))
}
func (m *Mock) Chown(path string, uid, gid int) error {
	return m.record(fmt.Sprintf("chown(%s,%d,%d)", path, uid, gid))
}
func (m *Mock) Symlink(oldname, newname string) error {
	return m.record(fmt.Sprintf("symlink(%s,%s)", oldname, newname))
}
func (m *Mock) CloseRange(from uint, preserve ...uintptr) error {
	return m.record(fmt.Sprintf("close_range(%d, preserve=%v)", from, preserve))
}
func (m *Mock) GetPwUid(uid int) (string, error) {
	return "mockuser", m.record(fmt.Sprintf("getpwuid(%d)", uid))
}
func (m *Mock) SetIOPriority(class, prio int) error {
	return m.record(fmt.Sprintf("ioprio_set(%d,%d)", class, prio))
}
func (m *Mock) MountSetattr(path string, recursive bool, setAttr, clearAttr uint64) error {
	return m.record(fmt.Sprintf("mount_setattr(%s,%v,%d,%d)", path, recursive, setAttr, clearAttr))
}
