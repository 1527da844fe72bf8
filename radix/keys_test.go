package radix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkCodec asserts that ordered, which must be strictly increasing, keeps
// its order under the encoding in both directions and round-trips.
func checkCodec[K Key](t *testing.T, ordered []K) {
	t.Helper()
	asc, desc := newCodec[K](true), newCodec[K](false)
	for i, v := range ordered {
		require.Equal(t, v, asc.decode(asc.encode(v)))
		require.Equal(t, v, desc.decode(desc.encode(v)))
		require.LessOrEqual(t, asc.encode(v), asc.padding())
		require.LessOrEqual(t, desc.encode(v), desc.padding())
		if i == 0 {
			continue
		}
		prev := ordered[i-1]
		require.Less(t, asc.encode(prev), asc.encode(v), "%v < %v", prev, v)
		require.Greater(t, desc.encode(prev), desc.encode(v), "%v < %v", prev, v)
	}
}

func TestCodecOrder(t *testing.T) {
	t.Run("int8", func(t *testing.T) {
		checkCodec(t, []int8{math.MinInt8, -100, -1, 0, 1, 100, math.MaxInt8})
	})
	t.Run("uint8", func(t *testing.T) {
		checkCodec(t, []uint8{0, 1, 127, 128, 255})
	})
	t.Run("int16", func(t *testing.T) {
		checkCodec(t, []int16{math.MinInt16, -300, 0, 300, math.MaxInt16})
	})
	t.Run("uint32", func(t *testing.T) {
		checkCodec(t, []uint32{0, 1, 1 << 31, math.MaxUint32 - 1})
	})
	t.Run("int32", func(t *testing.T) {
		checkCodec(t, []int32{math.MinInt32, -5, 0, 5, math.MaxInt32})
	})
	t.Run("int64", func(t *testing.T) {
		checkCodec(t, []int64{math.MinInt64, -1 << 40, -1, 0, 1 << 40, math.MaxInt64})
	})
	t.Run("int", func(t *testing.T) {
		checkCodec(t, []int{math.MinInt, -1, 0, 1, math.MaxInt})
	})
	t.Run("uint64", func(t *testing.T) {
		checkCodec(t, []uint64{0, 1 << 63, math.MaxUint64 - 1})
	})
	t.Run("float32", func(t *testing.T) {
		checkCodec(t, []float32{float32(math.Inf(-1)), -math.MaxFloat32, -1.5, -math.SmallestNonzeroFloat32,
			0, math.SmallestNonzeroFloat32, 0.25, 1, math.MaxFloat32, float32(math.Inf(1))})
	})
	t.Run("float64", func(t *testing.T) {
		checkCodec(t, []float64{math.Inf(-1), -1e300, -2, -1e-300, 0, 1e-300, 3, 1e300, math.Inf(1)})
	})
}

func TestCodecNamedTypes(t *testing.T) {
	type priority int16
	c := newCodec[priority](true)
	require.Equal(t, signedKey, c.kind)
	require.Equal(t, 16, c.bits)
	require.Less(t, c.encode(priority(-2)), c.encode(priority(3)))
}

func TestCodecMaxKeyBelowPadding(t *testing.T) {
	// The largest key encodes to the padding pattern itself; stability
	// keeps it ahead of padding slots, which come later in the input.
	c := newCodec[uint16](true)
	require.Equal(t, c.padding(), c.encode(math.MaxUint16))
	d := newCodec[uint16](false)
	require.Equal(t, d.padding(), d.encode(0))
}
