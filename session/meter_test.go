package session

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundondigital/aes67rx/rtpaudio"
)

func encodeS16(values ...int16) []byte {
	b := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func TestMeasureSignalSilenceIsNaN(t *testing.T) {
	data := encodeS16(0, 0, 0, 0)
	levels := measureSignal(data, rtpaudio.EncodingPCMS16)
	assert.True(t, math.IsNaN(levels.RMSDB))
	assert.Equal(t, 0.0, levels.MaxAbs)
}

func TestMeasureSignalFullScaleNear0dB(t *testing.T) {
	data := encodeS16(32767, -32768, 32767, -32768)
	levels := measureSignal(data, rtpaudio.EncodingPCMS16)
	assert.InDelta(t, 0.0, levels.RMSDB, 0.01)
	assert.InDelta(t, 1.0, levels.MaxAbs, 0.001)
}

func TestMeasureSignalHalfScaleMinus6dB(t *testing.T) {
	data := encodeS16(16384, -16384)
	levels := measureSignal(data, rtpaudio.EncodingPCMS16)
	assert.InDelta(t, -6.02, levels.RMSDB, 0.05)
}

func TestMeasureSignalUnsupportedEncodingIsNaN(t *testing.T) {
	levels := measureSignal([]byte{1, 2, 3, 4}, rtpaudio.EncodingPCMF32)
	assert.True(t, math.IsNaN(levels.RMSDB))
	assert.True(t, math.IsNaN(levels.MaxAbs))
}
