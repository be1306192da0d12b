package rtpaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodingBytesPerSample(t *testing.T) {
	assert.Equal(t, 1, EncodingPCMU8.BytesPerSample())
	assert.Equal(t, 2, EncodingPCMS16.BytesPerSample())
	assert.Equal(t, 3, EncodingPCMS24.BytesPerSample())
	assert.Equal(t, 4, EncodingPCMS32.BytesPerSample())
	assert.Equal(t, 4, EncodingPCMF32.BytesPerSample())
	assert.Equal(t, 8, EncodingPCMF64.BytesPerSample())
}

func TestEncodingGroundValue(t *testing.T) {
	assert.Equal(t, byte(0x80), EncodingPCMU8.GroundValue())
	assert.Equal(t, byte(0), EncodingPCMS16.GroundValue())
}

func TestEncodingFromString(t *testing.T) {
	e, err := EncodingFromString("pcm_s24")
	require.NoError(t, err)
	assert.Equal(t, EncodingPCMS24, e)

	_, err = EncodingFromString("pcm_bogus")
	assert.Error(t, err)
}

func TestFormatValid(t *testing.T) {
	f := Format{Encoding: EncodingPCMS16, SampleRate: 48000, NumChannels: 2}
	assert.True(t, f.Valid())
	assert.Equal(t, 4, f.BytesPerFrame())

	assert.False(t, Format{}.Valid())
}

func TestFormatWithByteOrder(t *testing.T) {
	f := Format{Encoding: EncodingPCMS16, SampleRate: 48000, NumChannels: 2, ByteOrder: BigEndian}
	le := f.WithByteOrder(LittleEndian)
	assert.Equal(t, LittleEndian, le.ByteOrder)
	assert.Equal(t, BigEndian, f.ByteOrder)
}
