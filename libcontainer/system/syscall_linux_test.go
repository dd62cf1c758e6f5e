package system

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSplitRangesNoPreserve(t *testing.T) {
	got := splitRanges(3, nil)
	require.Equal(t, [][2]uint{{3, unix.CloseRangeUnlimited}}, got)
}

func TestSplitRangesSinglePreserve(t *testing.T) {
	got := splitRanges(3, []uintptr{5})
	require.Equal(t, [][2]uint{
		{3, 4},
		{6, unix.CloseRangeUnlimited},
	}, got)
}

func TestSplitRangesPreserveAtLowerBound(t *testing.T) {
	got := splitRanges(3, []uintptr{3})
	require.Equal(t, [][2]uint{
		{4, unix.CloseRangeUnlimited},
	}, got)
}

func TestSplitRangesMultiplePreserveUnordered(t *testing.T) {
	got := splitRanges(3, []uintptr{9, 5, 3})
	require.Equal(t, [][2]uint{
		{4, 4},
		{6, 8},
		{10, unix.CloseRangeUnlimited},
	}, got)
}

func TestSplitRangesPreserveBelowFromIgnored(t *testing.T) {
	got := splitRanges(3, []uintptr{1, 2})
	require.Equal(t, [][2]uint{{3, unix.CloseRangeUnlimited}}, got)
}

func TestSplitRangesDuplicatePreserve(t *testing.T) {
	got := splitRanges(3, []uintptr{5, 5})
	require.Equal(t, [][2]uint{
		{3, 4},
		{6, unix.CloseRangeUnlimited},
	}, got)
}
