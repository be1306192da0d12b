package bytesx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappingU32DiffIdentity(t *testing.T) {
	cases := []struct{ a, b uint32 }{
		{10, 5},
		{5, 10},
		{0, math.MaxUint32},
		{math.MaxUint32, 0},
		{1 << 31, 0},
	}
	for _, c := range cases {
		d := DiffU32(c.a, c.b)
		assert.Equal(t, c.a, c.b+uint32(d), "a=%d b=%d", c.a, c.b)
	}
}

func TestWrappingU32DiffBound(t *testing.T) {
	d := DiffU32(0, 1<<31)
	assert.True(t, d == math.MinInt32 || d == math.MaxInt32 || d == -(1<<31))
}

func TestWrappingU32After(t *testing.T) {
	a := WrappingU32(10)
	b := WrappingU32(5)
	assert.True(t, a.After(b))
	assert.False(t, b.After(a))

	// wraparound: counter at 0 is "after" MaxUint32-10
	wrapped := WrappingU32(0)
	old := WrappingU32(math.MaxUint32 - 10)
	assert.True(t, wrapped.After(old))
}
