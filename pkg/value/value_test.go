package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletonsRoundTrip(t *testing.T) {
	require.True(t, Nil.IsNil())
	require.True(t, System.IsSystem())
	require.True(t, True.IsBoolean())
	require.True(t, False.IsBoolean())

	b, ok := True.AsBoolean()
	require.True(t, ok)
	assert.True(t, b)

	b, ok = False.AsBoolean()
	require.True(t, ok)
	assert.False(t, b)
}

func TestIntegerRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 42, math.MaxInt32, math.MinInt32, -1000000}
	for _, c := range cases {
		v := NewInteger(c)
		require.True(t, v.IsInteger(), "value %d should be an integer", c)
		got, ok := v.AsInteger()
		require.True(t, ok)
		assert.Equal(t, c, got)
		assert.Equal(t, TagInteger, v.Tag())
	}
}

func TestCharRoundTrip(t *testing.T) {
	for _, r := range []rune{'a', 'Z', '0', 'é', 0x1F600} {
		v := NewChar(r)
		require.True(t, v.IsChar())
		got, ok := v.AsChar()
		require.True(t, ok)
		assert.Equal(t, r, got)
	}
}

func TestSymbolRoundTrip(t *testing.T) {
	for _, id := range []uint32{0, 1, 65535, 1 << 20} {
		v := NewSymbol(id)
		require.True(t, v.IsSymbol())
		got, ok := v.AsSymbol()
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
}

func TestPointerRoundTrip(t *testing.T) {
	for _, ref := range []Ref{1, 2, 1 << 20} {
		v := NewPointer(ref)
		require.True(t, v.IsPointer())
		got, ok := v.AsPointer()
		require.True(t, ok)
		assert.Equal(t, ref, got)
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	cases := []float64{0, 1.5, -3.25, math.Inf(1), math.Inf(-1), math.SmallestNonzeroFloat64}
	for _, c := range cases {
		v := NewDouble(c)
		require.True(t, v.IsDouble(), "value %v should be a double", c)
		got, ok := v.AsDouble()
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
}

func TestNaNCanonicalizedAndNeverBoxed(t *testing.T) {
	v := NewDouble(math.NaN())
	require.True(t, v.IsDouble())
	got, ok := v.AsDouble()
	require.True(t, ok)
	assert.True(t, math.IsNaN(got))

	// A NaN produced by a negated NaN bit pattern must still decode as a
	// double, never collide with the tagged space.
	negNaN := math.Float64frombits(0xFFF8000000000001)
	v2 := NewDouble(negNaN)
	assert.True(t, v2.IsDouble())
}

func TestNewGenericConstructor(t *testing.T) {
	v := New(TagInteger, uint64(int64(int32(-7)))&payloadMask)
	got, ok := v.AsInteger()
	require.True(t, ok)
	assert.Equal(t, int32(-7), got)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(NewInteger(5), NewInteger(5)))
	assert.False(t, Equal(NewInteger(5), NewInteger(6)))
	assert.True(t, Equal(NewDouble(1.5), NewDouble(1.5)))
	// Mixed integer/double equality coerces the integer to double.
	assert.True(t, Equal(NewInteger(2), NewDouble(2.0)))
	assert.True(t, Equal(NewDouble(2.0), NewInteger(2)))
	assert.True(t, Equal(Nil, Nil))
	assert.False(t, Equal(Nil, False))
	assert.True(t, Equal(True, True))
}

func TestBitsRoundTrip(t *testing.T) {
	v := NewInteger(123)
	v2 := FromBits(v.Bits())
	assert.Equal(t, v, v2)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "nil", Nil.TypeName())
	assert.Equal(t, "Integer", NewInteger(1).TypeName())
	assert.Equal(t, "Double", NewDouble(1.0).TypeName())
	assert.Equal(t, "Object", NewPointer(1).TypeName())
}
