package configs

import "golang.org/x/sys/unix"

// NamespaceType identifies one of the eight namespace kinds the
// Namespace Controller (4.C) knows how to enter or create.
type NamespaceType string

const (
	NEWNET    NamespaceType = "NEWNET"
	NEWPID    NamespaceType = "NEWPID"
	NEWNS     NamespaceType = "NEWNS" // mount
	NEWUTS    NamespaceType = "NEWUTS"
	NEWIPC    NamespaceType = "NEWIPC"
	NEWUSER   NamespaceType = "NEWUSER"
	NEWCGROUP NamespaceType = "NEWCGROUP"
	NEWTIME   NamespaceType = "NEWTIME"
)

// cloneFlags maps each namespace type to the clone(2)/unshare(2) flag
// used when no existing namespace path is given.
var cloneFlags = map[NamespaceType]uintptr{
	NEWNET:    unix.CLONE_NEWNET,
	NEWPID:    unix.CLONE_NEWPID,
	NEWNS:     unix.CLONE_NEWNS,
	NEWUTS:    unix.CLONE_NEWUTS,
	NEWIPC:    unix.CLONE_NEWIPC,
	NEWUSER:   unix.CLONE_NEWUSER,
	NEWCGROUP: unix.CLONE_NEWCGROUP,
	NEWTIME:   unix.CLONE_NEWTIME,
}

// CloneFlag returns the clone(2) flag bit for t.
func (t NamespaceType) CloneFlag() uintptr {
	return cloneFlags[t]
}

// Namespace is a single entry in the ordered namespace set (§3): a
// type plus an optional path to an existing namespace to join instead
// of creating a new one.
type Namespace struct {
	Type NamespaceType `json:"type"`
	Path string        `json:"path,omitempty"`
}

// IsPrivate reports whether this entry creates a brand-new namespace
// (Path empty) as opposed to joining one that already exists.
func (n Namespace) IsPrivate() bool { return n.Path == "" }

// Namespaces is the ordered set carried in Config.Namespaces. Order is
// significant to the Namespace Controller: User before Pid, Pid before
// Mount (4.C).
type Namespaces []Namespace

// Contains reports whether t is present, regardless of path.
func (n Namespaces) Contains(t NamespaceType) bool {
	_, ok := n.Get(t)
	return ok
}

// Get returns the entry for t, if present.
func (n Namespaces) Get(t NamespaceType) (Namespace, bool) {
	for _, ns := range n {
		if ns.Type == t {
			return ns, true
		}
	}
	return Namespace{}, false
}

// PathOf returns the join-path for t, or "" if t is absent or private.
func (n Namespaces) PathOf(t NamespaceType) string {
	ns, ok := n.Get(t)
	if !ok {
		return ""
	}
	return ns.Path
}

// NamespaceOrder is the canonical application order the Namespace
// Controller follows across the birth protocol (4.C, §5): user, pid,
// then everything else, with mount always last among those applied in
// the same process.
var NamespaceOrder = []NamespaceType{
	NEWUSER,
	NEWPID,
	NEWIPC,
	NEWUTS,
	NEWNET,
	NEWCGROUP,
	NEWTIME,
	NEWNS,
}
