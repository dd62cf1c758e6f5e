package configs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/willf/bitset"
)

func TestHasRecAttrNilMasks(t *testing.T) {
	m := &Mount{}
	require.False(t, m.HasRecAttr())
}

func TestHasRecAttrEmptyMasks(t *testing.T) {
	m := &Mount{RecAttrSet: bitset.New(8), RecAttrClear: bitset.New(8)}
	require.False(t, m.HasRecAttr())
}

func TestHasRecAttrSetBit(t *testing.T) {
	set := bitset.New(8)
	set.Set(3)
	m := &Mount{RecAttrSet: set}
	require.True(t, m.HasRecAttr())
}

func TestHasRecAttrClearBit(t *testing.T) {
	clear := bitset.New(8)
	clear.Set(1)
	m := &Mount{RecAttrClear: clear}
	require.True(t, m.HasRecAttr())
}
