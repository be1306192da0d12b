package bytesx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtpTimeIntervalRoundTrip(t *testing.T) {
	for _, wire := range []int64{0, 1, -1, 1 << 20, -(1 << 20), math.MaxInt64, math.MinInt64} {
		x := FromWire(wire)
		assert.Equal(t, wire, x.ToWire())
		assert.Equal(t, x, FromWire(x.ToWire()))
	}
}

func TestPtpTimeIntervalSaturatesOnOverflow(t *testing.T) {
	huge := NewPtpTimeIntervalNanoseconds(1e30)
	assert.Equal(t, PtpTimeInterval(math.MaxInt64), huge)

	tiny := NewPtpTimeIntervalNanoseconds(-1e30)
	assert.Equal(t, PtpTimeInterval(math.MinInt64), tiny)
}

func TestPtpTimeIntervalAddSaturates(t *testing.T) {
	a := PtpTimeInterval(math.MaxInt64 - 1)
	b := PtpTimeInterval(10)
	assert.Equal(t, PtpTimeInterval(math.MaxInt64), a.Add(b))
}

func TestPtpTimeIntervalNanoseconds(t *testing.T) {
	x := NewPtpTimeIntervalNanoseconds(2.5)
	assert.InDelta(t, 2.5, x.Nanoseconds(), 1e-9)
	assert.Equal(t, int64(0x28000), x.ToWire())
}
