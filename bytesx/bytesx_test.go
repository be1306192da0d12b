package bytesx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint48RoundTrip(t *testing.T) {
	b := make([]byte, 6)
	PutUint48(b, 0x0000112233445566&0xffffffffffff)
	got := Uint48(b)
	assert.Equal(t, uint64(0x112233445566), got)
}

func TestInt24RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 0x7fffff, -0x800000, 12345, -12345} {
		b := make([]byte, 3)
		PutInt24LE(b, v)
		got := Int24LE(b)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestInt24SignExtension(t *testing.T) {
	// 0xFFFFFF -> -1
	b := []byte{0xff, 0xff, 0xff}
	assert.Equal(t, int32(-1), Int24LE(b))
	// 0x800000 -> -8388608 (most negative)
	b = []byte{0x00, 0x00, 0x80}
	assert.Equal(t, int32(-8388608), Int24LE(b))
}

func TestSwapBytesInvolution(t *testing.T) {
	for _, bps := range []int{2, 3, 4, 8} {
		orig := make([]byte, bps*4)
		for i := range orig {
			orig[i] = byte(i*7 + 3)
		}
		buf := append([]byte(nil), orig...)
		SwapBytes(buf, bps)
		SwapBytes(buf, bps)
		assert.Equal(t, orig, buf)
	}
}

func TestSwapBytes24(t *testing.T) {
	buf := []byte{1, 2, 3}
	SwapBytes(buf, 3)
	assert.Equal(t, []byte{3, 2, 1}, buf)
}
