package protocol

import (
	"encoding"
	"fmt"
)

// Bytes marshals any Packet that implements encoding.BinaryMarshaler.
func Bytes(p Packet) ([]byte, error) {
	m, ok := p.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("protocol: %T does not support marshaling", p)
	}
	return m.MarshalBinary()
}

// FromBytes unmarshals raw bytes into any Packet that implements
// encoding.BinaryUnmarshaler.
func FromBytes(b []byte, p Packet) error {
	u, ok := p.(encoding.BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("protocol: %T does not support unmarshaling", p)
	}
	return u.UnmarshalBinary(b)
}

// DecodePacket is the single entry point for turning a UDP datagram
// payload into a typed PTP packet. The caller type-switches (or inspects
// MessageType()) on the result.
func DecodePacket(b []byte) (Packet, error) {
	msgType, err := ProbeMsgType(b)
	if err != nil {
		return nil, err
	}

	var p Packet
	switch msgType {
	case MessageSync, MessageDelayReq:
		p = &SyncDelayReq{}
	case MessageFollowUp:
		p = &FollowUp{}
	case MessageDelayResp:
		p = &DelayResp{}
	case MessageAnnounce:
		p = &Announce{}
	case MessageSignaling:
		p = &Signaling{}
	case MessageManagement:
		p = &Management{}
	default:
		return nil, fmt.Errorf("protocol: unsupported message type %s (0x%x)", msgType, uint8(msgType))
	}

	if err := FromBytes(b, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProbeMsgType reads just enough of a datagram to determine its message
// type, without committing to a full decode.
func ProbeMsgType(b []byte) (MessageType, error) {
	if len(b) < 1 {
		return 0, fmt.Errorf("protocol: not enough data to probe message type")
	}
	return SdoIDAndMsgType(b[0]).MsgType(), nil
}
