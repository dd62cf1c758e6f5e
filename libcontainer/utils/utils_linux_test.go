package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchLabels(t *testing.T) {
	labels := []string{"selinux=system_u:object_r:svirt_sandbox_file_t:s0", "disable=false"}
	require.Equal(t, "system_u:object_r:svirt_sandbox_file_t:s0", SearchLabels(labels, "selinux"))
	require.Equal(t, "false", SearchLabels(labels, "disable"))
	require.Equal(t, "", SearchLabels(labels, "missing"))
}

func TestSearchLabelsDoesNotPrefixMatch(t *testing.T) {
	labels := []string{"selinuxfoo=bar"}
	require.Equal(t, "", SearchLabels(labels, "selinux"))
}

func TestWithProcfdResolvesUnderProc(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("hi"), 0o644))

	var seen string
	err := WithProcfd(dir, "file", func(procfd string) error {
		b, err := os.ReadFile(procfd)
		if err != nil {
			return err
		}
		seen = string(b)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "hi", seen)
}

func TestWithProcfdMissingRoot(t *testing.T) {
	err := WithProcfd(filepath.Join(t.TempDir(), "missing"), "file", func(string) error { return nil })
	require.Error(t, err)
}
