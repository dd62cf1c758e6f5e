// Package namespaces implements the Namespace Controller (4.C): it
// joins existing namespaces by path via setns(2) and creates new ones
// via unshare(2)/clone(2) flags, applies the UTS hostname/domainname
// rule, and moves configured network devices into the target
// namespace. Grounded on the youki reference's namespaces/mod.rs
// (original_source/crates/libcontainer/src/namespaces/mod.rs) and on
// the vishvananda/netlink usage pattern from moby-moby's
// libnetwork/osl package.
package namespaces

import (
	"fmt"
	"os"

	"github.com/vishvananda/netlink"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// JoinFlags returns the unshare(2)/clone(2) flags for every private
// (path-less) entry in ns, in NamespaceOrder.
func JoinFlags(ns configs.Namespaces) uintptr {
	var flags uintptr
	for _, t := range configs.NamespaceOrder {
		if n, ok := ns.Get(t); ok && n.IsPrivate() {
			flags |= t.CloneFlag()
		}
	}
	return flags
}

// EnterPaths joins every namespace entry that names an existing path,
// in NamespaceOrder, via setns(2) on an fd opened from that path.
// Mount namespace entries are joined last, matching NamespaceOrder,
// since joining mount after the others avoids observing a half-applied
// view of /proc for the namespaces joined afterward.
func EnterPaths(surface system.Surface, ns configs.Namespaces) error {
	for _, t := range configs.NamespaceOrder {
		n, ok := ns.Get(t)
		if !ok || n.IsPrivate() {
			continue
		}
		fd, err := os.Open(n.Path)
		if err != nil {
			return fmt.Errorf("namespaces: opening %s path %s: %w", t, n.Path, err)
		}
		err = surface.SetNS(int(fd.Fd()), t.CloneFlag())
		fd.Close()
		if err != nil {
			return fmt.Errorf("namespaces: setns %s: %w", t, err)
		}
	}
	return nil
}

// Unshare creates every private namespace entry of ns in one unshare
// call (used by the intermediate process when it unshares namespaces
// that do not require a fresh process, e.g. NEWNET/NEWUTS/NEWIPC before
// cloning init for NEWPID).
func Unshare(surface system.Surface, ns configs.Namespaces) error {
	flags := JoinFlags(ns)
	if flags == 0 {
		return nil
	}
	if err := surface.Unshare(flags); err != nil {
		return fmt.Errorf("namespaces: unshare 0x%x: %w", flags, err)
	}
	return nil
}

// ApplyUTS sets the container's hostname/domainname once inside a
// private UTS namespace. Joining an existing UTS namespace (n.Path !=
// "") never touches these, since the joined namespace's identity
// belongs to whatever process created it (4.C).
func ApplyUTS(surface system.Surface, ns configs.Namespaces, hostname, domainname string) error {
	n, ok := ns.Get(configs.NEWUTS)
	if !ok || !n.IsPrivate() {
		return nil
	}
	if hostname != "" {
		if err := surface.SetHostname(hostname); err != nil {
			return fmt.Errorf("namespaces: sethostname: %w", err)
		}
	}
	if domainname != "" {
		if err := surface.SetDomainname(domainname); err != nil {
			return fmt.Errorf("namespaces: setdomainname: %w", err)
		}
	}
	return nil
}

// MoveNetDevices moves each configured host network interface into
// the network namespace of pid, renaming it if requested. This runs
// from the host namespace, before or concurrently with the container
// process entering its own NEWNET, so the link is addressed by its
// host-side name.
func MoveNetDevices(pid int, devs map[string]*configs.LinuxNetDevice) error {
	for hostName, dev := range devs {
		link, err := netlink.LinkByName(hostName)
		if err != nil {
			return fmt.Errorf("namespaces: looking up net device %s: %w", hostName, err)
		}
		if err := netlink.LinkSetNsPid(link, pid); err != nil {
			return fmt.Errorf("namespaces: moving net device %s into pid %d: %w", hostName, pid, err)
		}
		if dev != nil && dev.Name != "" && dev.Name != hostName {
			if err := netlink.LinkSetName(link, dev.Name); err != nil {
				return fmt.Errorf("namespaces: renaming net device %s to %s: %w", hostName, dev.Name, err)
			}
		}
	}
	return nil
}

// IsSupported reports whether t is compiled into the running kernel,
// probed by attempting to open its magic-link under /proc/self/ns.
func IsSupported(t configs.NamespaceType) bool {
	name := map[configs.NamespaceType]string{
		configs.NEWNET:    "net",
		configs.NEWPID:    "pid",
		configs.NEWNS:     "mnt",
		configs.NEWUTS:    "uts",
		configs.NEWIPC:    "ipc",
		configs.NEWUSER:   "user",
		configs.NEWCGROUP: "cgroup",
		configs.NEWTIME:   "time",
	}[t]
	if name == "" {
		return false
	}
	_, err := os.Stat("/proc/self/ns/" + name)
	return err == nil
}
