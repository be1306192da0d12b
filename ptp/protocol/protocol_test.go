package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundondigital/aes67rx/bytesx"
)

func sampleHeader(msgType MessageType, seq uint16) Header {
	return Header{
		SdoIDAndMsgType:    NewSdoIDAndMsgType(msgType, 0),
		Version:            MajorVersion,
		MessageLength:      0, // filled per-message below
		DomainNumber:       0,
		FlagField:          FlagTwoStep,
		CorrectionField:    bytesx.NewPtpTimeIntervalNanoseconds(2.5),
		SourcePortIdentity: PortIdentity{ClockIdentity: 0x001122fffe334455, PortNumber: 1},
		SequenceID:         seq,
		ControlField:       0,
		LogMessageInterval: 0,
	}
}

func TestAnnounceRoundTrip(t *testing.T) {
	want := Announce{
		Header: sampleHeader(MessageAnnounce, 42),
		AnnounceBody: AnnounceBody{
			OriginTimestamp:      Timestamp{Seconds: NewPTPSeconds(1_700_000_000), Nanoseconds: 123456},
			CurrentUTCOffset:     37,
			GrandmasterPriority1: 128,
			GrandmasterClockQuality: ClockQuality{
				ClockClass:              6,
				ClockAccuracy:           ClockAccuracyNanosecond25,
				OffsetScaledLogVariance: 0x8000,
			},
			GrandmasterPriority2: 128,
			GrandmasterIdentity:  0xAAAAAAAAAAAAAAAA,
			StepsRemoved:         0,
			TimeSource:           TimeSourceGNSS,
		},
	}
	want.MessageLength = HeaderSize + announceBodySize

	raw, err := want.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, raw, HeaderSize+announceBodySize)

	var got Announce
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, want, got)
}

func TestSyncDelayReqRoundTrip(t *testing.T) {
	want := SyncDelayReq{
		Header:           sampleHeader(MessageSync, 7),
		SyncDelayReqBody: SyncDelayReqBody{OriginTimestamp: Timestamp{Seconds: NewPTPSeconds(5), Nanoseconds: 999}},
	}
	want.MessageLength = HeaderSize + syncDelayReqBodySize

	raw, err := want.MarshalBinary()
	require.NoError(t, err)

	var got SyncDelayReq
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, want, got)
}

func TestFollowUpRoundTrip(t *testing.T) {
	want := FollowUp{
		Header:       sampleHeader(MessageFollowUp, 7),
		FollowUpBody: FollowUpBody{PreciseOriginTimestamp: Timestamp{Seconds: NewPTPSeconds(5), Nanoseconds: 900_000}},
	}
	want.MessageLength = HeaderSize + followUpBodySize

	raw, err := want.MarshalBinary()
	require.NoError(t, err)

	var got FollowUp
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, want, got)
}

func TestDelayRespRoundTrip(t *testing.T) {
	want := DelayResp{
		Header: sampleHeader(MessageDelayResp, 99),
		DelayRespBody: DelayRespBody{
			ReceiveTimestamp:       Timestamp{Seconds: NewPTPSeconds(10), Nanoseconds: 5000},
			RequestingPortIdentity: PortIdentity{ClockIdentity: 0x001122fffe334455, PortNumber: 1},
		},
	}
	want.MessageLength = HeaderSize + delayRespBodySize

	raw, err := want.MarshalBinary()
	require.NoError(t, err)

	var got DelayResp
	require.NoError(t, got.UnmarshalBinary(raw))
	assert.Equal(t, want, got)
}

func TestDecodePacketDispatchesByMessageType(t *testing.T) {
	sync := SyncDelayReq{Header: sampleHeader(MessageSync, 1)}
	sync.MessageLength = HeaderSize + syncDelayReqBodySize
	raw, err := sync.MarshalBinary()
	require.NoError(t, err)

	p, err := DecodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, MessageSync, p.MessageType())
	_, ok := p.(*SyncDelayReq)
	assert.True(t, ok)
}

func TestDecodePacketRejectsShortBuffer(t *testing.T) {
	_, err := DecodePacket(nil)
	assert.Error(t, err)
}

func TestTimestampToRTPTimestamp32Periodicity(t *testing.T) {
	const rate = 48000
	a := Timestamp{Seconds: NewPTPSeconds(0), Nanoseconds: 0}
	periodNS := (uint64(1) << 32) * 1_000_000_000 / rate // nanoseconds per wrap at this rate
	b := Timestamp{Seconds: NewPTPSeconds(periodNS / 1_000_000_000), Nanoseconds: uint32(periodNS % 1_000_000_000)}
	assert.Equal(t, a.ToRTPTimestamp32(rate), b.ToRTPTimestamp32(rate))
}

func TestTimestampToRTPTimestamp32Monotonic(t *testing.T) {
	const rate = 48000
	a := Timestamp{Seconds: NewPTPSeconds(1), Nanoseconds: 0}
	b := Timestamp{Seconds: NewPTPSeconds(1), Nanoseconds: 500_000_000}
	assert.Less(t, a.ToRTPTimestamp32(rate), b.ToRTPTimestamp32(rate))
}

func TestClockIdentityValid(t *testing.T) {
	valid, err := NewClockIdentity([]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	require.NoError(t, err)
	assert.True(t, valid.Valid())
	assert.False(t, ClockIdentity(0).Valid())
}

func TestNewClockIdentityPlacesMACAt0to5AndImplementerOctetsAt6to7(t *testing.T) {
	id, err := NewClockIdentity([]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	require.NoError(t, err)
	assert.Equal(t, ClockIdentity(0x0011223344552faa), id)
}

func TestClockIdentityValidRejectsZeroMACWithImplementerOctets(t *testing.T) {
	assert.False(t, ClockIdentity(0x0000000000002faa).Valid())
}

func TestPortIdentityOrdering(t *testing.T) {
	a := PortIdentity{ClockIdentity: 1, PortNumber: 1}
	b := PortIdentity{ClockIdentity: 1, PortNumber: 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
