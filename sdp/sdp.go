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

// Package sdp parses the subset of a session description this receiver
// needs to join an AES67 stream (spec §6.3): origin, connection, the first
// audio media description's rtpmap/ptime, and the ts-refclk/mediaclk/
// source-filter attributes RFC 7273 adds for RAVENNA/AES67 streams.
package sdp

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	pionsdp "github.com/pion/sdp/v3"

	"github.com/soundondigital/aes67rx/rtpaudio"
)

// ClockSource is the a=ts-refclk clock source (RFC 7273 §4.3); this receiver
// only cares about distinguishing "ptp" from everything else.
type ClockSource uint8

const (
	ClockSourceUndefined ClockSource = iota
	ClockSourcePTP
	ClockSourceOther
)

// ReferenceClock is the parsed a=ts-refclk attribute.
type ReferenceClock struct {
	Source               ClockSource
	GrandmasterIdentity  string
	Domain               int
}

// MediaClock is the parsed a=mediaclk attribute: the RTP-timestamp offset on
// the PTP timescale for a "direct" clock mode stream.
type MediaClock struct {
	Direct bool
	Offset int64
}

// SourceFilter is a parsed a=source-filter SSM restriction.
type SourceFilter struct {
	Destination net.IP
	Source      net.IP
}

// StreamDescription is the fields spec §6.3 says the receiver consumes from
// a session description, reduced from the first audio media description.
type StreamDescription struct {
	OriginUsername string
	SessionID      uint64
	SessionVersion uint64

	MulticastAddr net.IP
	TTL           int
	Port          uint16

	PayloadType     uint8
	Encoding        rtpaudio.Encoding
	SampleRate      uint32
	Channels        uint32
	FramesPerPacket int

	ReferenceClock *ReferenceClock
	MediaClock     *MediaClock
	SourceFilter   *SourceFilter
}

// Parse parses raw SDP text via pion/sdp/v3 and narrows it to
// StreamDescription, using the session-level connection/origin as a
// fallback for any media description that omits its own c= line.
func Parse(raw []byte) (*StreamDescription, error) {
	var sd pionsdp.SessionDescription
	if err := sd.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("sdp: unmarshal: %w", err)
	}

	if len(sd.MediaDescriptions) == 0 {
		return nil, fmt.Errorf("sdp: no media descriptions")
	}

	var audio *pionsdp.MediaDescription
	for _, m := range sd.MediaDescriptions {
		if m.MediaName.Media == "audio" {
			audio = m
			break
		}
	}
	if audio == nil {
		return nil, fmt.Errorf("sdp: no audio media description")
	}

	desc := &StreamDescription{
		OriginUsername: sd.Origin.Username,
		SessionID:      sd.Origin.SessionID,
		SessionVersion: sd.Origin.SessionVersion,
		Port:           uint16(audio.MediaName.Port.Value),
	}

	conn := audio.ConnectionInformation
	if conn == nil {
		conn = sd.ConnectionInformation
	}
	if conn == nil || conn.Address == nil {
		return nil, fmt.Errorf("sdp: no connection address for audio media")
	}
	ip := net.ParseIP(conn.Address.Address)
	if ip == nil {
		return nil, fmt.Errorf("sdp: invalid connection address %q", conn.Address.Address)
	}
	desc.MulticastAddr = ip
	if conn.Address.TTL != nil {
		desc.TTL = *conn.Address.TTL
	}

	if len(audio.MediaName.Formats) == 0 {
		return nil, fmt.Errorf("sdp: audio media description has no payload type")
	}
	pt, err := strconv.ParseUint(audio.MediaName.Formats[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("sdp: invalid payload type %q: %w", audio.MediaName.Formats[0], err)
	}
	desc.PayloadType = uint8(pt)

	if err := parseRTPMap(audio, desc); err != nil {
		return nil, err
	}
	if err := parsePTime(audio, desc); err != nil {
		return nil, err
	}

	desc.ReferenceClock = parseReferenceClock(audio)
	desc.MediaClock = parseMediaClock(audio)
	desc.SourceFilter = parseSourceFilter(audio)

	return desc, nil
}

func attributeValue(m *pionsdp.MediaDescription, key string) (string, bool) {
	for _, a := range m.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// parseRTPMap reads "a=rtpmap:<pt> L16|L24|L32/<rate>/<channels>" and
// establishes the encoding, sample rate and channel count.
func parseRTPMap(m *pionsdp.MediaDescription, desc *StreamDescription) error {
	for _, a := range m.Attributes {
		if a.Key != "rtpmap" {
			continue
		}
		fields := strings.SplitN(a.Value, " ", 2)
		if len(fields) != 2 {
			continue
		}
		pt, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil || uint8(pt) != desc.PayloadType {
			continue
		}
		parts := strings.Split(fields[1], "/")
		if len(parts) != 3 {
			return fmt.Errorf("sdp: malformed rtpmap %q", a.Value)
		}
		enc, err := encodingFromRTPMapName(parts[0])
		if err != nil {
			return err
		}
		rate, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return fmt.Errorf("sdp: invalid rtpmap rate %q: %w", parts[1], err)
		}
		channels, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			return fmt.Errorf("sdp: invalid rtpmap channel count %q: %w", parts[2], err)
		}
		desc.Encoding = enc
		desc.SampleRate = uint32(rate)
		desc.Channels = uint32(channels)
		return nil
	}
	return fmt.Errorf("sdp: no rtpmap attribute for payload type %d", desc.PayloadType)
}

func encodingFromRTPMapName(name string) (rtpaudio.Encoding, error) {
	switch name {
	case "L16":
		return rtpaudio.EncodingPCMS16, nil
	case "L24":
		return rtpaudio.EncodingPCMS24, nil
	case "L32":
		return rtpaudio.EncodingPCMS32, nil
	default:
		return rtpaudio.EncodingUndefined, fmt.Errorf("sdp: unsupported rtpmap encoding %q", name)
	}
}

// parsePTime reads "a=ptime:<ms>" and establishes frames per packet as
// round(ptime*rate/1000) (spec §6.3).
func parsePTime(m *pionsdp.MediaDescription, desc *StreamDescription) error {
	v, ok := attributeValue(m, "ptime")
	if !ok {
		return fmt.Errorf("sdp: no ptime attribute")
	}
	ms, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("sdp: invalid ptime %q: %w", v, err)
	}
	desc.FramesPerPacket = int(ms*float64(desc.SampleRate)/1000 + 0.5)
	return nil
}

// parseReferenceClock reads "a=ts-refclk:ptp=IEEE1588-2008:<gmid>:<domain>".
func parseReferenceClock(m *pionsdp.MediaDescription) *ReferenceClock {
	v, ok := attributeValue(m, "ts-refclk")
	if !ok {
		return nil
	}
	if !strings.HasPrefix(v, "ptp=") {
		return &ReferenceClock{Source: ClockSourceOther}
	}
	rest := strings.TrimPrefix(v, "ptp=")
	parts := strings.Split(rest, ":")
	rc := &ReferenceClock{Source: ClockSourcePTP}
	if len(parts) >= 2 {
		rc.GrandmasterIdentity = parts[1]
	}
	if len(parts) >= 3 {
		if d, err := strconv.Atoi(parts[2]); err == nil {
			rc.Domain = d
		}
	}
	return rc
}

// parseMediaClock reads "a=mediaclk:direct[=<offset>]".
func parseMediaClock(m *pionsdp.MediaDescription) *MediaClock {
	v, ok := attributeValue(m, "mediaclk")
	if !ok {
		return nil
	}
	if !strings.HasPrefix(v, "direct") {
		return &MediaClock{}
	}
	mc := &MediaClock{Direct: true}
	if eq := strings.IndexByte(v, '='); eq >= 0 {
		if off, err := strconv.ParseInt(v[eq+1:], 10, 64); err == nil {
			mc.Offset = off
		}
	}
	return mc
}

// parseSourceFilter reads "a=source-filter: incl IN IP4 <dst> <src>".
func parseSourceFilter(m *pionsdp.MediaDescription) *SourceFilter {
	v, ok := attributeValue(m, "source-filter")
	if !ok {
		return nil
	}
	fields := strings.Fields(v)
	if len(fields) < 5 || fields[0] != "incl" {
		return nil
	}
	dst := net.ParseIP(fields[3])
	src := net.ParseIP(fields[4])
	if dst == nil || src == nil {
		return nil
	}
	return &SourceFilter{Destination: dst, Source: src}
}
