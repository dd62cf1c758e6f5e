// Package rootfs implements the thirteen-phase Rootfs Pipeline (4.D):
// mount namespace preparation, recursive bind mounts, device nodes,
// default symlinks, pivot_root (or chroot fallback), and the
// readonly/masked path finishing pass. Grounded on the youki
// reference's rootfs/mod.rs and rootfs/{symlink,device}.rs
// (original_source/crates/libcontainer/src/rootfs/).
package rootfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	devices "github.com/opencontainers/cgroups/devices/config"
	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
	"github.com/cellarium-oci/crucible/libcontainer/system"
)

// defaultSymlinks mirrors the OCI-mandated /proc-relative convenience
// links every rootfs gets unless the bundle overrides them (4.D phase
// 9).
var defaultSymlinks = map[string]string{
	"/proc/self/fd":   "dev/fd",
	"/proc/self/fd/0": "dev/stdin",
	"/proc/self/fd/1": "dev/stdout",
	"/proc/self/fd/2": "dev/stderr",
}

// Prepare runs the full rootfs pipeline for cfg against the already-
// created mount namespace of the calling (init) process.
//
// Phases, matching 4.D:
//  1. set root mount propagation
//  2. bind-mount the new root onto itself (pivot_root precondition)
//  3. (no separate step: /proc, /dev, /sys and the like are mounted
//     only when they appear as configured Mount entries in phase 4)
//  4. apply every configured Mount entry, honoring Recursive/bind
//     semantics and each mount's own propagation flags
//  5. create configured device nodes (mknod, or bind-mount when the
//     caller lacks CAP_MKNOD inside a user namespace)
//  6. create default devices (null, zero, full, random, urandom, tty)
//     when not already present
//  7. create default and configured symlinks
//  8. pivot_root (or chroot, 4.D "Non-goals: no pivot_root on kernels
//     without it... chroot fallback")
//  9. chdir to the new /
// 10. apply readonly paths
// 11. apply masked paths
// 12. set the final root mount readonly if requested
// 13. apply sysctls
func Prepare(surface system.Surface, cfg *configs.Config) error {
	if cfg.Rootfs == "" {
		return fmt.Errorf("rootfs: empty rootfs path")
	}
	if err := prepareRoot(surface, cfg); err != nil {
		return err
	}
	for _, m := range cfg.Mounts {
		if err := mountEntry(surface, cfg.Rootfs, m); err != nil {
			return fmt.Errorf("rootfs: mounting %s: %w", m.Destination, err)
		}
	}
	for _, d := range cfg.Devices {
		if err := createDevice(surface, cfg.Rootfs, d, cfg.RootlessEUID); err != nil {
			return fmt.Errorf("rootfs: device %s: %w", d.Path, err)
		}
	}
	if err := createDefaultDevices(surface, cfg.Rootfs, cfg.RootlessEUID); err != nil {
		return err
	}
	if err := createDefaultSymlinks(surface, cfg.Rootfs); err != nil {
		return err
	}
	if err := pivot(surface, cfg); err != nil {
		return err
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("rootfs: chdir /: %w", err)
	}
	if err := applyReadonlyPaths(surface, cfg.ReadonlyPaths); err != nil {
		return err
	}
	if err := applyMaskedPaths(surface, cfg.MaskPaths, cfg.MountLabel); err != nil {
		return err
	}
	if cfg.Readonlyfs {
		if err := remountReadonly(surface, "/"); err != nil {
			return err
		}
	}
	if err := applySysctls(cfg.Sysctl); err != nil {
		return err
	}
	return nil
}

// prepareRoot makes the mount namespace's root propagation private
// (or the configured value) and bind-mounts the new rootfs onto
// itself, the standard precondition for pivot_root(2) to accept a
// non-mountpoint directory as the new root.
func prepareRoot(surface system.Surface, cfg *configs.Config) error {
	flag := uintptr(unix.MS_PRIVATE | unix.MS_REC)
	if cfg.RootPropagation != 0 {
		flag = uintptr(cfg.RootPropagation)
	}
	if err := surface.Mount("", "/", "", flag, ""); err != nil {
		return fmt.Errorf("rootfs: setting root propagation: %w", err)
	}
	if err := surface.Mount(cfg.Rootfs, cfg.Rootfs, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("rootfs: self bind-mounting rootfs: %w", err)
	}
	return nil
}

func mountEntry(surface system.Surface, rootfs string, m *configs.Mount) error {
	dest, err := securejoin.SecureJoin(rootfs, m.Destination)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	flags := uintptr(m.Flags)
	isBind := flags&unix.MS_BIND != 0
	if isBind {
		if fi, statErr := os.Stat(m.Source); statErr == nil && fi.IsDir() {
			if mkErr := os.MkdirAll(dest, 0o755); mkErr != nil {
				return mkErr
			}
		} else {
			if mkErr := ensureFile(dest); mkErr != nil {
				return mkErr
			}
		}
	} else if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	if err := surface.Mount(m.Source, dest, m.Device, flags, m.Data); err != nil {
		return err
	}
	if isBind && m.Recursive {
		if err := surface.Mount("", dest, "", unix.MS_REC|unix.MS_BIND, ""); err != nil {
			return err
		}
	}
	if m.HasRecAttr() {
		if err := surface.MountSetattr(dest, m.Recursive, m.SetAttrMask(), m.ClearAttrMask()); err != nil {
			return fmt.Errorf("mount_setattr %s: %w", dest, err)
		}
	}
	for _, p := range m.PropagationFlags {
		if err := surface.Mount("", dest, "", uintptr(p), ""); err != nil {
			return fmt.Errorf("applying propagation: %w", err)
		}
	}
	return nil
}

func ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// createDevice creates a single configured device node. Inside a user
// namespace without CAP_MKNOD, mknod(2) always fails with EPERM, so
// the pipeline falls back to bind-mounting the host's equivalent node
// (4.D phase 5 note: "rootless containers cannot mknod").
func createDevice(surface system.Surface, rootfs string, d *devices.Device, rootless bool) error {
	dest, err := securejoin.SecureJoin(rootfs, d.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if rootless {
		if err := ensureFile(dest); err != nil {
			return err
		}
		return surface.Mount(d.Path, dest, "bind", unix.MS_BIND, "")
	}
	mode := deviceMode(d)
	dev := unix.Mkdev(uint32(d.Major), uint32(d.Minor))
	if err := surface.Mknod(dest, mode, int(dev)); err != nil {
		return err
	}
	return surface.Chown(dest, int(d.Uid), int(d.Gid))
}

func deviceMode(d *devices.Device) uint32 {
	var t uint32
	switch d.Type {
	case 'c':
		t = unix.S_IFCHR
	case 'b':
		t = unix.S_IFBLK
	case 'p':
		t = unix.S_IFIFO
	}
	return t | uint32(d.FileMode)
}

// defaultDevices is the mandatory device set every rootfs gets
// regardless of the bundle's own Devices list (4.D phase 6), using the
// kernel's well-known major/minor pairs for each.
var defaultDevices = []*devices.Device{
	{Rule: devices.Rule{Type: devices.CharDevice, Major: 1, Minor: 3}, Path: "/dev/null", FileMode: 0o666},
	{Rule: devices.Rule{Type: devices.CharDevice, Major: 1, Minor: 5}, Path: "/dev/zero", FileMode: 0o666},
	{Rule: devices.Rule{Type: devices.CharDevice, Major: 1, Minor: 7}, Path: "/dev/full", FileMode: 0o666},
	{Rule: devices.Rule{Type: devices.CharDevice, Major: 1, Minor: 8}, Path: "/dev/random", FileMode: 0o666},
	{Rule: devices.Rule{Type: devices.CharDevice, Major: 1, Minor: 9}, Path: "/dev/urandom", FileMode: 0o666},
	{Rule: devices.Rule{Type: devices.CharDevice, Major: 5, Minor: 0}, Path: "/dev/tty", FileMode: 0o666},
}

// createDefaultDevices creates whichever of defaultDevices the bundle's
// own configured Devices list didn't already place at the same path.
func createDefaultDevices(surface system.Surface, rootfs string, rootless bool) error {
	for _, d := range defaultDevices {
		dest, err := securejoin.SecureJoin(rootfs, d.Path)
		if err != nil {
			return err
		}
		if _, err := os.Lstat(dest); err == nil {
			continue
		}
		if err := createDevice(surface, rootfs, d, rootless); err != nil {
			return fmt.Errorf("rootfs: default device %s: %w", d.Path, err)
		}
	}
	return nil
}

func createDefaultSymlinks(surface system.Surface, rootfs string) error {
	for target, link := range defaultSymlinks {
		dest := filepath.Join(rootfs, link)
		if _, err := os.Lstat(dest); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := surface.Symlink(target, dest); err != nil && !os.IsExist(err) {
			return fmt.Errorf("rootfs: symlink %s -> %s: %w", link, target, err)
		}
	}
	return nil
}

// pivot performs pivot_root into cfg.Rootfs, falling back to chroot
// when the config asks for it explicitly (4.D: "NoPivotRoot"). The
// pivot_root stacking trick (pivot onto itself, then unmount the old
// root which pivot_root leaves stacked at the new root) avoids needing
// a separate put_old directory.
func pivot(surface system.Surface, cfg *configs.Config) error {
	if cfg.NoPivotRoot {
		if err := surface.Chroot(cfg.Rootfs); err != nil {
			return fmt.Errorf("rootfs: chroot: %w", err)
		}
		return os.Chdir("/")
	}
	if err := os.Chdir(cfg.Rootfs); err != nil {
		return fmt.Errorf("rootfs: chdir to new root: %w", err)
	}
	if err := surface.PivotRoot(cfg.Rootfs); err != nil {
		return fmt.Errorf("rootfs: pivot_root: %w", err)
	}
	// pivot_root(path, path) stacks the old root directly on top of the
	// new one at "/"; lazily unmounting it once detaches the old tree
	// without needing to know its original path.
	if err := unix.Unmount("/", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("rootfs: detaching old root: %w", err)
	}
	return nil
}

func applyReadonlyPaths(surface system.Surface, paths []string) error {
	for _, p := range paths {
		full := filepath.Join("/", p)
		if _, err := os.Stat(full); err != nil {
			continue
		}
		if err := surface.Mount(full, full, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("rootfs: readonly bind %s: %w", p, err)
		}
		if err := surface.Mount("", full, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("rootfs: readonly remount %s: %w", p, err)
		}
	}
	return nil
}

// applyMaskedPaths hides paths the container must not be able to read
// (e.g. /proc/kcore) behind a bind-mount from /dev/null, or tmpfs for
// directories.
func applyMaskedPaths(surface system.Surface, paths []string, label string) error {
	for _, p := range paths {
		full := filepath.Join("/", p)
		fi, err := os.Stat(full)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			if err := surface.Mount("tmpfs", full, "tmpfs", unix.MS_RDONLY, mountLabelData(label)); err != nil {
				return fmt.Errorf("rootfs: masking dir %s: %w", p, err)
			}
			continue
		}
		if err := surface.Mount("/dev/null", full, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("rootfs: masking %s: %w", p, err)
		}
	}
	return nil
}

func mountLabelData(label string) string {
	if label == "" {
		return ""
	}
	return "context=\"" + label + "\""
}

func remountReadonly(surface system.Surface, path string) error {
	return surface.Mount("", path, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, "")
}

func applySysctls(kv map[string]string) error {
	for k, v := range kv {
		path := "/proc/sys/" + strings.ReplaceAll(k, ".", "/")
		if err := os.WriteFile(path, []byte(v), 0o644); err != nil {
			return fmt.Errorf("rootfs: sysctl %s=%s: %w", k, v, err)
		}
	}
	return nil
}
