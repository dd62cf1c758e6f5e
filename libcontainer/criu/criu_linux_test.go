package criu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointerHelpers(t *testing.T) {
	b := boolPtr(true)
	require.NotNil(t, b)
	require.True(t, *b)

	i := int32Ptr(42)
	require.NotNil(t, i)
	require.Equal(t, int32(42), *i)

	s := stringPtr("dump.log")
	require.NotNil(t, s)
	require.Equal(t, "dump.log", *s)
}

func TestOpenOrCreateMakesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint")
	f, err := openOrCreate(dir)
	require.NoError(t, err)
	defer f.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestOpenOrCreateExistingDir(t *testing.T) {
	dir := t.TempDir()
	f, err := openOrCreate(dir)
	require.NoError(t, err)
	f.Close()
}
