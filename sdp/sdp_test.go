package sdp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundondigital/aes67rx/rtpaudio"
)

const exampleSDP = "v=0\r\n" +
	"o=- 123456 1 IN IP4 192.168.1.10\r\n" +
	"s=AES67 Test Stream\r\n" +
	"c=IN IP4 239.1.1.1/32\r\n" +
	"t=0 0\r\n" +
	"m=audio 5004 RTP/AVP 97\r\n" +
	"a=rtpmap:97 L24/48000/2\r\n" +
	"a=ptime:1\r\n" +
	"a=ts-refclk:ptp=IEEE1588-2008:00-11-22-FF-FE-33-44-55:0\r\n" +
	"a=mediaclk:direct=0\r\n" +
	"a=source-filter: incl IN IP4 239.1.1.1 192.168.1.5\r\n"

func TestParseStreamDescription(t *testing.T) {
	desc, err := Parse([]byte(exampleSDP))
	require.NoError(t, err)

	assert.True(t, desc.MulticastAddr.Equal(net.ParseIP("239.1.1.1")))
	assert.Equal(t, 32, desc.TTL)
	assert.Equal(t, uint16(5004), desc.Port)
	assert.Equal(t, uint8(97), desc.PayloadType)
	assert.Equal(t, rtpaudio.EncodingPCMS24, desc.Encoding)
	assert.Equal(t, uint32(48000), desc.SampleRate)
	assert.Equal(t, uint32(2), desc.Channels)
	assert.Equal(t, 48, desc.FramesPerPacket)

	require.NotNil(t, desc.ReferenceClock)
	assert.Equal(t, ClockSourcePTP, desc.ReferenceClock.Source)
	assert.Equal(t, "00-11-22-FF-FE-33-44-55", desc.ReferenceClock.GrandmasterIdentity)
	assert.Equal(t, 0, desc.ReferenceClock.Domain)

	require.NotNil(t, desc.MediaClock)
	assert.True(t, desc.MediaClock.Direct)
	assert.Equal(t, int64(0), desc.MediaClock.Offset)

	require.NotNil(t, desc.SourceFilter)
	assert.True(t, desc.SourceFilter.Destination.Equal(net.ParseIP("239.1.1.1")))
	assert.True(t, desc.SourceFilter.Source.Equal(net.ParseIP("192.168.1.5")))
}

func TestParseRejectsMissingAudioMedia(t *testing.T) {
	_, err := Parse([]byte("v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"))
	assert.Error(t, err)
}

func TestParseRejectsUnknownEncoding(t *testing.T) {
	bad := "v=0\r\n" +
		"o=- 1 1 IN IP4 192.168.1.10\r\n" +
		"s=-\r\n" +
		"c=IN IP4 239.1.1.1/32\r\n" +
		"t=0 0\r\n" +
		"m=audio 5004 RTP/AVP 97\r\n" +
		"a=rtpmap:97 OPUS/48000/2\r\n" +
		"a=ptime:1\r\n"
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}
