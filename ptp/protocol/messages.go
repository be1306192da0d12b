package protocol

import (
	"encoding/binary"
	"fmt"
)

func marshalTimestampTo(t Timestamp, b []byte) {
	copy(b, t.Seconds[:])
	binary.BigEndian.PutUint32(b[6:], t.Nanoseconds)
}

func unmarshalTimestamp(b []byte) Timestamp {
	var t Timestamp
	copy(t.Seconds[:], b[:6])
	t.Nanoseconds = binary.BigEndian.Uint32(b[6:])
	return t
}

// AnnounceBody carries the fields of Table 43, following the header.
type AnnounceBody struct {
	OriginTimestamp         Timestamp
	CurrentUTCOffset        int16
	GrandmasterPriority1    uint8
	GrandmasterClockQuality ClockQuality
	GrandmasterPriority2    uint8
	GrandmasterIdentity     ClockIdentity
	StepsRemoved            uint16
	TimeSource              TimeSource
}

// announceBodySize is the wire size of AnnounceBody (30 bytes, spec §6.1).
const announceBodySize = 30

// Announce is a full Announce packet (header + body, no TLVs — this
// receiver never originates or depends on optional TLVs).
type Announce struct {
	Header
	AnnounceBody
}

func (p *Announce) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+announceBodySize)
	n := marshalHeaderTo(&p.Header, b)
	marshalTimestampTo(p.OriginTimestamp, b[n:])
	binary.BigEndian.PutUint16(b[n+10:], uint16(p.CurrentUTCOffset))
	b[n+13] = p.GrandmasterPriority1
	b[n+14] = byte(p.GrandmasterClockQuality.ClockClass)
	b[n+15] = byte(p.GrandmasterClockQuality.ClockAccuracy)
	binary.BigEndian.PutUint16(b[n+16:], p.GrandmasterClockQuality.OffsetScaledLogVariance)
	b[n+18] = p.GrandmasterPriority2
	binary.BigEndian.PutUint64(b[n+19:], uint64(p.GrandmasterIdentity))
	binary.BigEndian.PutUint16(b[n+27:], p.StepsRemoved)
	b[n+29] = byte(p.TimeSource)
	return b, nil
}

func (p *Announce) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+announceBodySize {
		return fmt.Errorf("protocol: short Announce, need %d got %d", HeaderSize+announceBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := checkPacketLength(&p.Header, len(b)); err != nil {
		return err
	}
	n := HeaderSize
	p.OriginTimestamp = unmarshalTimestamp(b[n:])
	p.CurrentUTCOffset = int16(binary.BigEndian.Uint16(b[n+10:]))
	p.GrandmasterPriority1 = b[n+13]
	p.GrandmasterClockQuality.ClockClass = ClockClass(b[n+14])
	p.GrandmasterClockQuality.ClockAccuracy = ClockAccuracy(b[n+15])
	p.GrandmasterClockQuality.OffsetScaledLogVariance = binary.BigEndian.Uint16(b[n+16:])
	p.GrandmasterPriority2 = b[n+18]
	p.GrandmasterIdentity = ClockIdentity(binary.BigEndian.Uint64(b[n+19:]))
	p.StepsRemoved = binary.BigEndian.Uint16(b[n+27:])
	p.TimeSource = TimeSource(b[n+29])
	return nil
}

// SyncDelayReqBody is the shared body of Sync and Delay-Req (Table 44).
type SyncDelayReqBody struct {
	OriginTimestamp Timestamp
}

const syncDelayReqBodySize = 10

// SyncDelayReq is a full Sync or Delay-Req packet; which one it is comes
// from Header.MessageType().
type SyncDelayReq struct {
	Header
	SyncDelayReqBody
}

func (p *SyncDelayReq) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+syncDelayReqBodySize)
	n := marshalHeaderTo(&p.Header, b)
	marshalTimestampTo(p.OriginTimestamp, b[n:])
	return b, nil
}

func (p *SyncDelayReq) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+syncDelayReqBodySize {
		return fmt.Errorf("protocol: short Sync/Delay-Req, need %d got %d", HeaderSize+syncDelayReqBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := checkPacketLength(&p.Header, len(b)); err != nil {
		return err
	}
	p.OriginTimestamp = unmarshalTimestamp(b[HeaderSize:])
	return nil
}

// FollowUpBody carries the precise origin timestamp of a preceding
// two-step Sync (Table 45).
type FollowUpBody struct {
	PreciseOriginTimestamp Timestamp
}

const followUpBodySize = 10

type FollowUp struct {
	Header
	FollowUpBody
}

func (p *FollowUp) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+followUpBodySize)
	n := marshalHeaderTo(&p.Header, b)
	marshalTimestampTo(p.PreciseOriginTimestamp, b[n:])
	return b, nil
}

func (p *FollowUp) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+followUpBodySize {
		return fmt.Errorf("protocol: short Follow-Up, need %d got %d", HeaderSize+followUpBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := checkPacketLength(&p.Header, len(b)); err != nil {
		return err
	}
	p.PreciseOriginTimestamp = unmarshalTimestamp(b[HeaderSize:])
	return nil
}

// DelayRespBody carries the master's receive timestamp for a Delay-Req and
// the identity of the port that sent it (Table 46).
type DelayRespBody struct {
	ReceiveTimestamp       Timestamp
	RequestingPortIdentity PortIdentity
}

const delayRespBodySize = 20

type DelayResp struct {
	Header
	DelayRespBody
}

func (p *DelayResp) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize+delayRespBodySize)
	n := marshalHeaderTo(&p.Header, b)
	marshalTimestampTo(p.ReceiveTimestamp, b[n:])
	binary.BigEndian.PutUint64(b[n+10:], uint64(p.RequestingPortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[n+18:], p.RequestingPortIdentity.PortNumber)
	return b, nil
}

func (p *DelayResp) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize+delayRespBodySize {
		return fmt.Errorf("protocol: short Delay-Resp, need %d got %d", HeaderSize+delayRespBodySize, len(b))
	}
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := checkPacketLength(&p.Header, len(b)); err != nil {
		return err
	}
	n := HeaderSize
	p.ReceiveTimestamp = unmarshalTimestamp(b[n:])
	p.RequestingPortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[n+10:]))
	p.RequestingPortIdentity.PortNumber = binary.BigEndian.Uint16(b[n+18:])
	return nil
}

// Signaling and Management are not otherwise consumed by this receiver
// (spec's scope is the default delay request-response profile); they are
// decoded only as far as the common header so DecodePacket never has to
// reject a well-formed but uninteresting message type outright.
type Signaling struct {
	Header
	Payload []byte
}

func (p *Signaling) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := checkPacketLength(&p.Header, len(b)); err != nil {
		return err
	}
	p.Payload = append([]byte(nil), b[HeaderSize:]...)
	return nil
}

type Management struct {
	Header
	Payload []byte
}

func (p *Management) UnmarshalBinary(b []byte) error {
	if err := unmarshalHeader(&p.Header, b); err != nil {
		return err
	}
	if err := checkPacketLength(&p.Header, len(b)); err != nil {
		return err
	}
	p.Payload = append([]byte(nil), b[HeaderSize:]...)
	return nil
}

// Packet abstracts over all decodable message types.
type Packet interface {
	MessageType() MessageType
	SetSequence(uint16)
}
