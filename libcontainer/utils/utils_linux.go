// Package utils holds the small filesystem/procfs helpers shared
// across the rootfs pipeline, state store, and operations surface —
// grounded on runc's libcontainer/utils package, the pattern the
// teacher repo's process_linux.go already leans on via its vendored
// copy of the same helpers.
package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// WithProcfd resolves path relative to root through /proc/self/fd/N
// (an already-open fd on root) so intermediate symlink components
// can't be swapped out from under the caller between resolution and
// use (TOCTOU across a mount namespace boundary) — the same
// "resolve under /proc" trick runc's WithProcfd uses around mounts and
// the pivot sequence.
func WithProcfd(root, path string, fn func(procfd string) error) error {
	fh, err := os.OpenFile(root, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("utils: opening %s: %w", root, err)
	}
	defer fh.Close()

	procfd := fmt.Sprintf("/proc/self/fd/%d", fh.Fd())
	target, err := filepath.EvalSymlinks(procfd)
	if err != nil {
		return fmt.Errorf("utils: evaluating %s: %w", procfd, err)
	}
	if target != root {
		return fmt.Errorf("utils: fd %s race: expected %s, got %s", procfd, root, target)
	}
	return fn(filepath.Join(procfd, path))
}

// SearchLabels returns the value of key from a "key=value" formatted
// label slice (process/mount labels), mirroring the lookup runc's
// label package does for SELinux/AppArmor mount options.
func SearchLabels(labels []string, key string) string {
	for _, l := range labels {
		if len(l) > len(key) && l[:len(key)] == key && l[len(key)] == '=' {
			return l[len(key)+1:]
		}
	}
	return ""
}
