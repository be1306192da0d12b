package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/soundondigital/aes67rx/bytesx"
)

// MajorVersion is the PTP major version this codec implements.
const MajorVersion uint8 = 2

// HeaderSize is the fixed common-header length (IEEE 1588-2019 Table 35).
const HeaderSize = 34

// Flag bits of the header's FlagField (Table 37).
const (
	FlagAlternateMaster       uint16 = 1 << (8 + 0)
	FlagTwoStep               uint16 = 1 << (8 + 1)
	FlagUnicast               uint16 = 1 << (8 + 2)
	FlagLeap61                uint16 = 1 << 0
	FlagLeap59                uint16 = 1 << 1
	FlagCurrentUTCOffsetValid uint16 = 1 << 2
	FlagPTPTimescale          uint16 = 1 << 3
	FlagTimeTraceable         uint16 = 1 << 4
	FlagFrequencyTraceable    uint16 = 1 << 5
)

// Header is the 34-byte common PTP message header shared by every message
// type (spec §6.1).
type Header struct {
	SdoIDAndMsgType     SdoIDAndMsgType
	Version             uint8
	MessageLength       uint16
	DomainNumber        uint8
	MinorSdoID          uint8
	FlagField           uint16
	CorrectionField     bytesx.PtpTimeInterval
	MessageTypeSpecific uint32
	SourcePortIdentity  PortIdentity
	SequenceID          uint16
	ControlField        uint8
	LogMessageInterval  LogInterval
}

func (h *Header) MessageType() MessageType { return h.SdoIDAndMsgType.MsgType() }

func (h *Header) SetSequence(seq uint16) { h.SequenceID = seq }

func (h *Header) TwoStep() bool { return h.FlagField&FlagTwoStep != 0 }

func unmarshalHeader(h *Header, b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("protocol: short header, need %d got %d", HeaderSize, len(b))
	}
	h.SdoIDAndMsgType = SdoIDAndMsgType(b[0])
	h.Version = b[1]
	h.MessageLength = binary.BigEndian.Uint16(b[2:])
	h.DomainNumber = b[4]
	h.MinorSdoID = b[5]
	h.FlagField = binary.BigEndian.Uint16(b[6:])
	h.CorrectionField = bytesx.FromWire(int64(binary.BigEndian.Uint64(b[8:])))
	h.MessageTypeSpecific = binary.BigEndian.Uint32(b[16:])
	h.SourcePortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[20:]))
	h.SourcePortIdentity.PortNumber = binary.BigEndian.Uint16(b[28:])
	h.SequenceID = binary.BigEndian.Uint16(b[30:])
	h.ControlField = b[32]
	h.LogMessageInterval = LogInterval(b[33])
	return nil
}

func marshalHeaderTo(h *Header, b []byte) int {
	b[0] = byte(h.SdoIDAndMsgType)
	b[1] = h.Version
	binary.BigEndian.PutUint16(b[2:], h.MessageLength)
	b[4] = h.DomainNumber
	b[5] = h.MinorSdoID
	binary.BigEndian.PutUint16(b[6:], h.FlagField)
	binary.BigEndian.PutUint64(b[8:], uint64(h.CorrectionField.ToWire()))
	binary.BigEndian.PutUint32(b[16:], h.MessageTypeSpecific)
	binary.BigEndian.PutUint64(b[20:], uint64(h.SourcePortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[28:], h.SourcePortIdentity.PortNumber)
	binary.BigEndian.PutUint16(b[30:], h.SequenceID)
	b[32] = h.ControlField
	b[33] = byte(h.LogMessageInterval)
	return HeaderSize
}

func checkPacketLength(h *Header, have int) error {
	if int(h.MessageLength) > have {
		return fmt.Errorf("protocol: message claims length %d, only %d bytes available", h.MessageLength, have)
	}
	return nil
}
