package rtpaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bytesPerFrame = 2 // mono pcm_s16, for arithmetic simplicity

func packet(ts uint32, numFrames int, fill byte) []byte {
	b := make([]byte, numFrames*bytesPerFrame)
	for i := range b {
		b[i] = fill
	}
	return b
}

// TestReorderWindowAcceptsWithinHalfRing reproduces spec §8 scenario 4: ring
// capacity 1024 frames, cursor at rtp_ts=10_000; a packet 500 behind is
// accepted, a packet 513 ahead is dropped.
func TestReorderWindowAcceptsWithinHalfRing(t *testing.T) {
	r := NewRing(1024, bytesPerFrame, 0)
	r.producerCursor.Store(10_000)

	assert.True(t, r.Accepts(10_000-500))
	assert.False(t, r.Accepts(10_000+513))

	// boundary: exactly ring_frames/2 away is accepted, +1 beyond is not.
	assert.True(t, r.Accepts(10_000+512))
	assert.True(t, r.Accepts(10_000-512))
}

// TestRealtimeReadUnderDesyncThenResyncs reproduces spec §8 scenario 5: a
// huge drift ground-fills and flags desync, and the next call with the same
// target (after a write lands there) reads real data instead of desyncing
// again.
func TestRealtimeReadUnderDesyncThenResyncs(t *testing.T) {
	r := NewRing(2048, bytesPerFrame, 0)

	out := make([]byte, 256*bytesPerFrame)
	target := uint32(1 << 20)
	result := r.Read(out, 256, target, true)

	assert.True(t, result.Desync)
	for _, b := range out {
		require.Equal(t, byte(0), b)
	}

	// Producer writes at the target the callback asked for.
	r.Write(target, packet(target, 256, 0x7F), 256, 1, 0)

	out2 := make([]byte, 256*bytesPerFrame)
	result2 := r.Read(out2, 256, target, true)
	assert.False(t, result2.Desync)
	assert.Equal(t, target, result2.FirstRTPTimestamp)
	for _, b := range out2 {
		require.Equal(t, byte(0x7F), b)
	}
}

func TestWriteAdvancesProducerCursorMonotonically(t *testing.T) {
	r := NewRing(1024, bytesPerFrame, 0)
	r.Write(100, packet(100, 48, 1), 48, 1, 0)
	assert.Equal(t, uint32(148), r.ProducerCursor())

	// an out-of-order (earlier) packet must not rewind the cursor.
	r.Write(90, packet(90, 10, 1), 10, 2, 0)
	assert.Equal(t, uint32(148), r.ProducerCursor())
}

func TestReadAbsorbsSmallDriftWithoutSeeking(t *testing.T) {
	r := NewRing(1024, bytesPerFrame, 0)
	r.Write(0, packet(0, 256, 0x11), 256, 1, 0)

	out := make([]byte, 64*bytesPerFrame)
	// drift of 10 is within frames=64, so this reads at the cursor (0), not
	// at the target.
	result := r.Read(out, 64, 10, true)
	assert.Equal(t, uint32(0), result.FirstRTPTimestamp)
	assert.False(t, result.Desync)
	assert.Equal(t, uint32(64), r.ConsumerCursor())
}

func TestReadSeeksOnMidRangeDrift(t *testing.T) {
	r := NewRing(1024, bytesPerFrame, 0)
	r.Write(0, packet(0, 512, 0x22), 512, 1, 0)
	r.Write(300, packet(300, 64, 0x33), 64, 2, 0)

	out := make([]byte, 64*bytesPerFrame)
	// drift of 300 exceeds frames=64 but is within ring_frames/2=512.
	result := r.Read(out, 64, 300, true)
	assert.Equal(t, uint32(300), result.FirstRTPTimestamp)
	assert.False(t, result.Desync)
	assert.Equal(t, byte(0x33), out[0])
	assert.Equal(t, uint32(364), r.ConsumerCursor())
}
