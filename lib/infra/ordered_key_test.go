package infra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderedKeyCompare(t *testing.T) {
	testcases := []struct {
		name   string
		i, j   float64
		expect int64
	}{
		{"less", 1.0, 1.1, -1},
		{"equal", 2.5, 2.5, 0},
		{"greater", 3.0, -3.0, 1},
		{"nan first", math.NaN(), -math.MaxFloat64, -1},
		{"nan last", math.Inf(-1), math.NaN(), 1},
		{"nan nan", math.NaN(), math.NaN(), 0},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			require.Equal(tt, tc.expect, OrderedKeyCompare[float64](tc.i, tc.j))
		})
	}
}

func TestOrderedKeyCompare_String(t *testing.T) {
	require.Less(t, OrderedKeyCompare("abc", "abd"), int64(0))
	require.Greater(t, OrderedKeyCompare("b", "abc"), int64(0))
	require.Equal(t, int64(0), OrderedKeyCompare("", ""))
}

func TestReverseOrderedKeyCompare(t *testing.T) {
	require.Equal(t, int64(1), ReverseOrderedKeyCompare[uint64](1, 2))
	require.Equal(t, int64(-1), ReverseOrderedKeyCompare[uint64](2, 1))
	require.Equal(t, int64(0), ReverseOrderedKeyCompare[int8](-1, -1))
}
