// Package userns validates and applies the user namespace uid/gid
// mappings declared in a container's configuration (4.F), grounded on
// the youki reference's user_ns.rs (original_source/crates/
// libcontainer/src/user_ns.rs) and on akabarki76-runc's
// libcontainer/generic_error.go-style wrapping for the setgroups deny
// gate (CVE-2014-8989).
package userns

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

// Validate rejects id-mappings that would leave the namespace with no
// coverage for uid/gid 0, since every OCI bundle's init process is
// expected to run as (namespaced) root during setup.
func Validate(uidMaps, gidMaps []configs.IDMap) error {
	if len(uidMaps) == 0 || len(gidMaps) == 0 {
		return fmt.Errorf("userns: uid and gid mappings are both required when USER namespace is requested")
	}
	if !coversZero(uidMaps) {
		return fmt.Errorf("userns: uid mapping does not cover container uid 0")
	}
	if !coversZero(gidMaps) {
		return fmt.Errorf("userns: gid mapping does not cover container gid 0")
	}
	return nil
}

func coversZero(maps []configs.IDMap) bool {
	for _, m := range maps {
		if m.ContainerID <= 0 && 0 < m.ContainerID+m.Size {
			return true
		}
	}
	return false
}

// WriteMode selects how mappings reach /proc/<pid>/{u,g}id_map.
type WriteMode int

const (
	// WriteDirect writes the map file directly; valid only when this
	// process has CAP_SETUID/CAP_SETGID in the target's parent
	// namespace and the map uses a single extent mapping its own uid.
	WriteDirect WriteMode = iota
	// WriteHelper shells out to newuidmap(1)/newgidmap(1), required
	// whenever multiple extents are mapped or the caller relies on
	// /etc/sub{u,g}id delegated ranges (4.F).
	WriteHelper
)

// Write applies uidMaps/gidMaps to the process pid, which must already
// exist (typically stopped at a birth-protocol barrier) and must share
// no memory with the caller beyond /proc.
//
// setgroups is written "deny" before gid_map whenever gid mappings are
// given and the caller is not root, closing CVE-2014-8989 (an unprivileged process
// inside the namespace could otherwise call setgroups to assume a
// supplementary group it was never granted).
func Write(pid int, uidMaps, gidMaps []configs.IDMap, mode WriteMode) error {
	if err := writeSetgroupsDeny(pid, gidMaps); err != nil {
		return err
	}
	if err := writeMap(pid, "uid_map", uidMaps, mode, "newuidmap"); err != nil {
		return err
	}
	if err := writeMap(pid, "gid_map", gidMaps, mode, "newgidmap"); err != nil {
		return err
	}
	return nil
}

func writeSetgroupsDeny(pid int, gidMaps []configs.IDMap) error {
	if len(gidMaps) == 0 || os.Geteuid() == 0 {
		return nil
	}
	path := fmt.Sprintf("/proc/%d/setgroups", pid)
	if err := os.WriteFile(path, []byte("deny"), 0o644); err != nil {
		if os.IsNotExist(err) {
			// Old kernels (<3.19) have no setgroups knob at all; gid_map
			// writes are unrestricted there.
			return nil
		}
		return fmt.Errorf("userns: writing setgroups deny for pid %d: %w", pid, err)
	}
	return nil
}

func writeMap(pid int, file string, maps []configs.IDMap, mode WriteMode, helper string) error {
	if len(maps) == 0 {
		return nil
	}
	if mode == WriteHelper {
		return writeViaHelper(pid, helper, maps)
	}
	path := fmt.Sprintf("/proc/%d/%s", pid, file)
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("userns: opening %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(formatMap(maps)); err != nil {
		return fmt.Errorf("userns: writing %s: %w", path, err)
	}
	return nil
}

func writeViaHelper(pid int, helper string, maps []configs.IDMap) error {
	args := []string{strconv.Itoa(pid)}
	for _, m := range maps {
		args = append(args,
			strconv.FormatInt(m.ContainerID, 10),
			strconv.FormatInt(m.HostID, 10),
			strconv.FormatInt(m.Size, 10),
		)
	}
	cmd := exec.Command(helper, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("userns: %s %v: %w: %s", helper, args, err, out)
	}
	return nil
}

func formatMap(maps []configs.IDMap) string {
	s := ""
	for _, m := range maps {
		s += fmt.Sprintf("%d %d %d\n", m.ContainerID, m.HostID, m.Size)
	}
	return s
}
