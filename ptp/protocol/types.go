/*
Copyright (c) AES67 RX SDK contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package protocol implements the bit-exact wire encoding of the IEEE
// 1588-2019 messages this receiver consumes: Announce, Sync, Follow-Up,
// Delay-Req and Delay-Resp.
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
)

// MessageType is the low nibble of the first header octet (Table 36).
type MessageType uint8

const (
	MessageSync               MessageType = 0x0
	MessageDelayReq           MessageType = 0x1
	MessagePDelayReq          MessageType = 0x2
	MessagePDelayResp         MessageType = 0x3
	MessageFollowUp           MessageType = 0x8
	MessageDelayResp          MessageType = 0x9
	MessagePDelayRespFollowUp MessageType = 0xA
	MessageAnnounce           MessageType = 0xB
	MessageSignaling          MessageType = 0xC
	MessageManagement         MessageType = 0xD
)

var messageTypeNames = map[MessageType]string{
	MessageSync:               "SYNC",
	MessageDelayReq:           "DELAY_REQ",
	MessagePDelayReq:          "PDELAY_REQ",
	MessagePDelayResp:         "PDELAY_RESP",
	MessageFollowUp:           "FOLLOW_UP",
	MessageDelayResp:          "DELAY_RESP",
	MessagePDelayRespFollowUp: "PDELAY_RESP_FOLLOW_UP",
	MessageAnnounce:           "ANNOUNCE",
	MessageSignaling:          "SIGNALING",
	MessageManagement:         "MANAGEMENT",
}

func (m MessageType) String() string { return messageTypeNames[m] }

// PortEvent and PortGeneral are the UDP destination ports of PTP event and
// general messages (spec §6.1 "Transport").
const (
	PortEvent   = 319
	PortGeneral = 320
)

// MulticastIPv4 is the IEEE 1588 default delay-request profile's multicast
// group address for IPv4 transport (spec §6.1).
var MulticastIPv4 = net.IPv4(224, 0, 1, 129)

// SdoIDAndMsgType packs the transportSpecific/major-SDO-ID nibble with the
// message type nibble into the header's first octet.
type SdoIDAndMsgType uint8

func (m SdoIDAndMsgType) MsgType() MessageType { return MessageType(m & 0xf) }

func NewSdoIDAndMsgType(msgType MessageType, sdoID uint8) SdoIDAndMsgType {
	return SdoIDAndMsgType(sdoID<<4 | uint8(msgType))
}

// implementerOctets are the two fixed octets IEEE1588-2019 7.5.2.2.2.2
// inserts at positions 6-7 when deriving a ClockIdentity from an EUI-48 MAC.
var implementerOctets = [2]byte{0x2f, 0xaa}

// ClockIdentity is an 8-octet unique identifier, constructed by placing a
// 6-octet MAC (EUI-48) at positions 0-5 and the fixed implementer octets at
// positions 6-7 (spec §3 "Clock identity").
type ClockIdentity uint64

func (c ClockIdentity) String() string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(c))
	return fmt.Sprintf("%02x%02x%02x.%02x%02x.%02x%02x%02x",
		b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7])
}

// Valid reports whether the identity is non-zero and, when it carries the
// EUI-48-derived implementer octets, the first six octets are non-zero
// (spec §3 "A clock identity is valid iff it is non-zero and, when the
// implementer octets are present, the first six octets are non-zero").
func (c ClockIdentity) Valid() bool {
	if c == 0 {
		return false
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(c))
	if b[6] == implementerOctets[0] && b[7] == implementerOctets[1] {
		for _, x := range b[0:6] {
			if x != 0 {
				return true
			}
		}
		return false
	}
	return true
}

// NewClockIdentity builds a ClockIdentity from an EUI-48 or EUI-64 MAC.
func NewClockIdentity(mac net.HardwareAddr) (ClockIdentity, error) {
	var b [8]byte
	switch len(mac) {
	case 6:
		b[0], b[1], b[2], b[3], b[4], b[5] = mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]
		b[6], b[7] = implementerOctets[0], implementerOctets[1]
	case 8:
		copy(b[:], mac)
	default:
		return 0, fmt.Errorf("unsupported MAC %v, must be EUI-48 or EUI-64", mac)
	}
	return ClockIdentity(binary.BigEndian.Uint64(b[:])), nil
}

// PortIdentity identifies a PTP port: a clock identity plus a port number
// in [1, 0xfffe]; 0xffff means "all ports" and 0 is invalid.
type PortIdentity struct {
	ClockIdentity ClockIdentity
	PortNumber    uint16
}

func (p PortIdentity) String() string {
	return fmt.Sprintf("%s-%d", p.ClockIdentity, p.PortNumber)
}

// Compare returns -1/0/+1 comparing p and q: first by clock identity, then
// by port number.
func (p PortIdentity) Compare(q PortIdentity) int {
	switch {
	case p.ClockIdentity < q.ClockIdentity:
		return -1
	case p.ClockIdentity > q.ClockIdentity:
		return 1
	}
	switch {
	case p.PortNumber < q.PortNumber:
		return -1
	case p.PortNumber > q.PortNumber:
		return 1
	}
	return 0
}

func (p PortIdentity) Less(q PortIdentity) bool { return p.Compare(q) < 0 }

// AllPorts is the well-known "all ports" target port identity.
const AllPorts uint16 = 0xffff

// PTPSeconds is a 48-bit unsigned seconds count, stored big-endian.
type PTPSeconds [6]uint8

func (s PTPSeconds) Seconds() uint64 {
	return uint64(s[5]) | uint64(s[4])<<8 | uint64(s[3])<<16 |
		uint64(s[2])<<24 | uint64(s[1])<<32 | uint64(s[0])<<40
}

func NewPTPSeconds(v uint64) PTPSeconds {
	return PTPSeconds{
		byte(v >> 40), byte(v >> 32), byte(v >> 24),
		byte(v >> 16), byte(v >> 8), byte(v),
	}
}

// Timestamp is (seconds: 48-bit, nanoseconds: 32-bit), nanoseconds always
// normalized to [0, 1e9).
type Timestamp struct {
	Seconds     PTPSeconds
	Nanoseconds uint32
}

// AddSeconds returns t shifted by a real-valued number of seconds,
// renormalizing the fractional part back into [0, 1e9).
func (t Timestamp) AddSeconds(offset float64) Timestamp {
	total := float64(t.Seconds.Seconds())*1e9 + float64(t.Nanoseconds) + offset*1e9
	if total < 0 {
		total = 0
	}
	wholeSeconds := uint64(total / 1e9)
	ns := uint32(math.Round(total - float64(wholeSeconds)*1e9))
	if ns >= 1_000_000_000 {
		wholeSeconds++
		ns -= 1_000_000_000
	}
	return Timestamp{Seconds: NewPTPSeconds(wholeSeconds), Nanoseconds: ns}
}

// ToRTPTimestamp32 converts t to a 32-bit media-clock-rate RTP timestamp,
// periodic with period 2^32/rate seconds: spec §3,
// (seconds*rate + round(nanoseconds*rate/1e9)) mod 2^32.
func (t Timestamp) ToRTPTimestamp32(sampleRate uint32) uint32 {
	secTicks := t.Seconds.Seconds() * uint64(sampleRate)
	nsTicks := uint64(math.Round(float64(t.Nanoseconds) * float64(sampleRate) / 1e9))
	return uint32(secTicks + nsTicks)
}

// Less reports lexicographic ordering: seconds first, then nanoseconds.
func (t Timestamp) Less(u Timestamp) bool {
	if t.Seconds.Seconds() != u.Seconds.Seconds() {
		return t.Seconds.Seconds() < u.Seconds.Seconds()
	}
	return t.Nanoseconds < u.Nanoseconds
}

// ClockClass is the clock-class octet of ClockQuality (Table in RFC 8173
// §7.6.2.4); 255 signals slave-only, 248 is the AES67 default.
type ClockClass uint8

const (
	ClockClassDefault   ClockClass = 248
	ClockClassSlaveOnly ClockClass = 255
)

// ClockAccuracy enumerates the accuracy octet (RFC 8173 §7.6.2.5); only the
// handful this receiver's test scenarios exercise are named.
type ClockAccuracy uint8

const (
	ClockAccuracyNanosecond25  ClockAccuracy = 0x20
	ClockAccuracyNanosecond100 ClockAccuracy = 0x21
	ClockAccuracyNanosecond250 ClockAccuracy = 0x22
	ClockAccuracyMicrosecond1  ClockAccuracy = 0x23
	ClockAccuracyUnknown       ClockAccuracy = 0xFE
)

// ClockQuality is (class, accuracy, offset-scaled-log-variance).
type ClockQuality struct {
	ClockClass              ClockClass
	ClockAccuracy           ClockAccuracy
	OffsetScaledLogVariance uint16
}

// TimeSource indicates the grandmaster's immediate time source (Table 6).
type TimeSource uint8

const (
	TimeSourceAtomicClock        TimeSource = 0x10
	TimeSourceGNSS               TimeSource = 0x20
	TimeSourceTerrestrialRadio   TimeSource = 0x30
	TimeSourcePTP                TimeSource = 0x40
	TimeSourceNTP                TimeSource = 0x50
	TimeSourceHandSet            TimeSource = 0x60
	TimeSourceOther              TimeSource = 0x90
	TimeSourceInternalOscillator TimeSource = 0xa0
)

// LogInterval is log2 of a period in seconds.
type LogInterval int8

func (i LogInterval) Nanoseconds() int64 {
	return int64(math.Pow(2, float64(i)) * 1e9)
}

// PortState enumerates the IEEE 1588 port state machine (Table 20); only
// the receive-only-reachable subset is used by ptp/ordinaryclock, but all
// are represented here for wire/management completeness.
type PortState uint8

const (
	PortStateInitializing PortState = iota + 1
	PortStateFaulty
	PortStateDisabled
	PortStateListening
	PortStatePreMaster
	PortStateMaster
	PortStatePassive
	PortStateUncalibrated
	PortStateSlave
)

var portStateNames = map[PortState]string{
	PortStateInitializing: "INITIALIZING",
	PortStateFaulty:       "FAULTY",
	PortStateDisabled:     "DISABLED",
	PortStateListening:    "LISTENING",
	PortStatePreMaster:    "PRE_MASTER",
	PortStateMaster:       "MASTER",
	PortStatePassive:      "PASSIVE",
	PortStateUncalibrated: "UNCALIBRATED",
	PortStateSlave:        "SLAVE",
}

func (s PortState) String() string { return portStateNames[s] }
