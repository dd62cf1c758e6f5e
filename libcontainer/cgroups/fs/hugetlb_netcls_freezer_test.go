package fs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellarium-oci/crucible/libcontainer/configs"
)

func TestApplyHugetlbWritesPerPagesizeLimit(t *testing.T) {
	dir := t.TempDir()
	res := &configs.Resources{
		HugetlbLimit: []*configs.HugepageLimit{{Pagesize: "2MB", Limit: 134217728}},
	}
	require.NoError(t, applyHugetlb(dir, res))

	v, err := readFile(dir, "hugetlb.2MB.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, "134217728", v)
}

func TestApplyNetClsZeroIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyNetCls(dir, &configs.Resources{}))
	_, err := readFile(dir, "net_cls.classid")
	require.Error(t, err)
}

func TestApplyNetClsWritesClassid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyNetCls(dir, &configs.Resources{NetClsClassid: 0x100001}))
	v, err := readFile(dir, "net_cls.classid")
	require.NoError(t, err)
	require.Equal(t, "1048577", v)
}

func TestApplyFreezerUndefinedIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyFreezer(dir, configs.Undefined))
	_, err := readFile(dir, "freezer.state")
	require.Error(t, err)
}

func TestApplyFreezerWritesState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, applyFreezer(dir, configs.Frozen))
	v, err := readFile(dir, "freezer.state")
	require.NoError(t, err)
	require.Equal(t, "FROZEN", v)
}
