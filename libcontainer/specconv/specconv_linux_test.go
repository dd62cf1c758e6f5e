package specconv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func minimalSpec(bundle string) *specs.Spec {
	return &specs.Spec{
		Version: "1.1.0",
		Root:    &specs.Root{Path: "rootfs"},
		Process: &specs.Process{
			Args: []string{"/bin/sh"},
			Cwd:  "/",
		},
		Linux: &specs.Linux{
			Namespaces: []specs.LinuxNamespace{
				{Type: specs.PIDNamespace},
				{Type: specs.MountNamespace},
			},
		},
	}
}

func TestCreateLibcontainerConfigResolvesRelativeRootfs(t *testing.T) {
	cfg, err := CreateLibcontainerConfig("c1", "/bundle", minimalSpec("/bundle"), Opts{})
	require.NoError(t, err)
	require.Equal(t, "/bundle/rootfs", cfg.Rootfs)
}

func TestCreateLibcontainerConfigRequiresRoot(t *testing.T) {
	s := minimalSpec("/bundle")
	s.Root = nil
	_, err := CreateLibcontainerConfig("c1", "/bundle", s, Opts{})
	require.Error(t, err)
}

func TestCreateLibcontainerConfigRejectsUnknownNamespace(t *testing.T) {
	s := minimalSpec("/bundle")
	s.Linux.Namespaces = append(s.Linux.Namespaces, specs.LinuxNamespace{Type: "bogus"})
	_, err := CreateLibcontainerConfig("c1", "/bundle", s, Opts{})
	require.Error(t, err)
}

func TestCreateLibcontainerConfigMapsNamespaces(t *testing.T) {
	cfg, err := CreateLibcontainerConfig("c1", "/bundle", minimalSpec("/bundle"), Opts{})
	require.NoError(t, err)
	require.Len(t, cfg.Namespaces, 2)
	require.Equal(t, configs.NEWPID, cfg.Namespaces[0].Type)
	require.Equal(t, configs.NEWNS, cfg.Namespaces[1].Type)
}

func TestCreateLibcontainerConfigCgroupNaming(t *testing.T) {
	cfg, err := CreateLibcontainerConfig("c1", "/bundle", minimalSpec("/bundle"), Opts{
		CgroupParent: "machine.slice",
		UseSystemd:   true,
	})
	require.NoError(t, err)
	require.Equal(t, "c1", cfg.Cgroups.Name)
	require.Equal(t, "machine.slice", cfg.Cgroups.Parent)
	require.True(t, cfg.Cgroups.Systemd)
}

func TestPropagationFlagDefaultsToPrivate(t *testing.T) {
	require.Equal(t, unix.MS_PRIVATE|unix.MS_REC, propagationFlag(""))
	require.Equal(t, unix.MS_SHARED|unix.MS_REC, propagationFlag("shared"))
	require.Equal(t, unix.MS_SLAVE|unix.MS_REC, propagationFlag("slave"))
}

func TestParseMountOptionsSplitsFlagsFromData(t *testing.T) {
	p, err := parseMountOptions("ext4", []string{"ro", "noatime", "data=ordered", "rshared"})
	require.NoError(t, err)
	require.Equal(t, unix.MS_RDONLY|unix.MS_NOATIME, p.flags)
	require.Equal(t, "data=ordered", p.data)
	require.Equal(t, []int{unix.MS_SHARED | unix.MS_REC}, p.propFlags)
}

func TestParseMountOptionsBindTypeForcesBindFlag(t *testing.T) {
	p, err := parseMountOptions("bind", nil)
	require.NoError(t, err)
	require.Equal(t, unix.MS_BIND, p.flags)
}

func TestParseMountOptionsRefusesIdmap(t *testing.T) {
	_, err := parseMountOptions("bind", []string{"bind", "idmap"})
	require.Error(t, err)

	_, err = parseMountOptions("bind", []string{"bind", "ridmap"})
	require.Error(t, err)
}

func TestParseMountOptionsRecursiveReadonlySetsRecAttr(t *testing.T) {
	p, err := parseMountOptions("bind", []string{"bind", "rro"})
	require.NoError(t, err)
	require.True(t, p.recursive)
	require.True(t, p.recAttrSet.Test(uint(configs.RecAttrReadonly)))
}

func TestConvertMountsPreservesFields(t *testing.T) {
	out, err := convertMounts([]specs.Mount{
		{Source: "/src", Destination: "/dst", Type: "bind", Options: []string{"bind", "ro"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "/src", out[0].Source)
	require.Equal(t, "/dst", out[0].Destination)
	require.Equal(t, unix.MS_BIND|unix.MS_RDONLY, out[0].Flags)
}

func TestConvertMountsRefusesIdmap(t *testing.T) {
	_, err := convertMounts([]specs.Mount{
		{Source: "/src", Destination: "/dst", Type: "bind", Options: []string{"bind", "idmap"}},
	})
	require.Error(t, err)
}

func TestConvertProcessRequiresArgs(t *testing.T) {
	_, err := convertProcess(&specs.Process{})
	require.Error(t, err)
}

func TestConvertProcessDefaultsCwd(t *testing.T) {
	p, err := convertProcess(&specs.Process{Args: []string{"sh"}})
	require.NoError(t, err)
	require.Equal(t, "/", p.Cwd)
}

func TestConvertRlimitsSkipsUnknown(t *testing.T) {
	out := convertRlimits([]specs.POSIXRlimit{
		{Type: "RLIMIT_NOFILE", Hard: 1024, Soft: 512},
		{Type: "RLIMIT_BOGUS", Hard: 1, Soft: 1},
	})
	require.Len(t, out, 1)
	require.Equal(t, uint64(1024), out[0].Hard)
}

func TestConvertResourcesNilIsEmpty(t *testing.T) {
	res := convertResources(nil)
	require.NotNil(t, res)
	require.Empty(t, res.Devices)
}

func TestToRootfsAbsAbsoluteSkipsExistenceCheck(t *testing.T) {
	abs, err := ToRootfsAbs("/bundle", "/already/abs")
	require.NoError(t, err)
	require.Equal(t, "/already/abs", abs)
}

func TestToRootfsAbsRelativeJoinsAndChecksExists(t *testing.T) {
	dir := t.TempDir()
	rootfs := filepath.Join(dir, "rootfs")
	require.NoError(t, os.MkdirAll(rootfs, 0o755))

	abs, err := ToRootfsAbs(dir, "rootfs")
	require.NoError(t, err)
	require.Equal(t, rootfs, abs)
}

func TestToRootfsAbsRelativeMissingErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ToRootfsAbs(dir, "missing")
	require.Error(t, err)
}
