package ident

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRIDAssignerMonotone(t *testing.T) {
	a := NewRIDAssigner()
	var prev uint64
	for i := 0; i < 100; i++ {
		rid := a.Next()
		if i > 0 {
			require.Equal(t, prev+1, rid)
		}
		prev = rid
	}
}

func TestCantorPairInjective(t *testing.T) {
	seen := make(map[int64]struct{})
	for a := int64(0); a < 30; a++ {
		for b := int64(0); b < 30; b++ {
			p := CantorPair(a, b)
			_, dup := seen[p]
			require.False(t, dup, "CantorPair(%d,%d)=%d collided", a, b, p)
			seen[p] = struct{}{}
		}
	}
}

func TestPKLongAtomic(t *testing.T) {
	v, err := PKLong(Atomic, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	_, err = PKLong(Atomic, 1, 2)
	require.Error(t, err)
}

func TestPKLongCompound(t *testing.T) {
	v, err := PKLong(Compound, 3, 4)
	require.NoError(t, err)
	require.Equal(t, CantorPair(3, 4), v)

	_, err = PKLong(Compound, 1, 2, 3)
	require.Error(t, err)
}
