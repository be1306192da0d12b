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

// Package rtpaudio implements the AES67 RTP audio receive pipeline: packet
// ingest into a timestamp-indexed playout ring and drift-aware realtime
// reads for the audio callback (spec §4.5).
package rtpaudio

import (
	"fmt"

	"github.com/soundondigital/aes67rx/bytesx"
)

// ByteOrder is the wire/device byte order of PCM samples.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// ChannelOrdering distinguishes interleaved from planar multi-channel
// layouts; this receiver only ever produces interleaved frames off the
// wire, but the type is named for symmetry with the device side.
type ChannelOrdering uint8

const (
	Interleaved ChannelOrdering = iota
	NonInterleaved
)

// Encoding enumerates the supported PCM sample encodings (spec §4.6).
type Encoding uint8

const (
	EncodingUndefined Encoding = iota
	EncodingPCMS8
	EncodingPCMU8
	EncodingPCMS16
	EncodingPCMS24
	EncodingPCMS32
	EncodingPCMF32
	EncodingPCMF64
)

var encodingNames = map[Encoding]string{
	EncodingUndefined: "undefined",
	EncodingPCMS8:     "pcm_s8",
	EncodingPCMU8:     "pcm_u8",
	EncodingPCMS16:    "pcm_s16",
	EncodingPCMS24:    "pcm_s24",
	EncodingPCMS32:    "pcm_s32",
	EncodingPCMF32:    "pcm_f32",
	EncodingPCMF64:    "pcm_f64",
}

func (e Encoding) String() string { return encodingNames[e] }

// EncodingFromString parses the SDP/CLI spelling of an encoding.
func EncodingFromString(s string) (Encoding, error) {
	for e, name := range encodingNames {
		if name == s {
			return e, nil
		}
	}
	return EncodingUndefined, fmt.Errorf("rtpaudio: unknown encoding %q", s)
}

// BytesPerSample returns the wire size of one sample of this encoding, or 0
// for EncodingUndefined.
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingPCMS8, EncodingPCMU8:
		return 1
	case EncodingPCMS16:
		return 2
	case EncodingPCMS24:
		return 3
	case EncodingPCMS32, EncodingPCMF32:
		return 4
	case EncodingPCMF64:
		return 8
	default:
		return 0
	}
}

// GroundValue returns the byte value representing digital silence for this
// encoding: 0x80 for unsigned PCM, 0 for every signed/float encoding.
func (e Encoding) GroundValue() byte {
	if e == EncodingPCMU8 {
		return 0x80
	}
	return 0
}

// Format is a PCM stream's wire shape: sample encoding, byte order, channel
// layout, sample rate and channel count (spec §4.5/§4.6).
type Format struct {
	ByteOrder   ByteOrder
	Encoding    Encoding
	Ordering    ChannelOrdering
	SampleRate  uint32
	NumChannels uint32
}

// BytesPerSample is a convenience forwarding to Encoding.BytesPerSample.
func (f Format) BytesPerSample() int { return f.Encoding.BytesPerSample() }

// BytesPerFrame returns the size of one multi-channel frame.
func (f Format) BytesPerFrame() int { return f.BytesPerSample() * int(f.NumChannels) }

// GroundValue is a convenience forwarding to Encoding.GroundValue.
func (f Format) GroundValue() byte { return f.Encoding.GroundValue() }

// Valid reports whether the format is fully specified.
func (f Format) Valid() bool {
	return f.Encoding != EncodingUndefined && f.SampleRate != 0 && f.NumChannels != 0
}

// IsNativeByteOrder reports whether f's byte order matches the host's.
func (f Format) IsNativeByteOrder() bool {
	hostIsLE := !bytesx.HostIsBigEndian
	return hostIsLE == (f.ByteOrder == LittleEndian)
}

// HostByteOrder is the ByteOrder matching the running platform's native
// endianness, for selecting a device format without a byte swap.
func HostByteOrder() ByteOrder {
	if bytesx.HostIsBigEndian {
		return BigEndian
	}
	return LittleEndian
}

// WithByteOrder returns a copy of f with its byte order replaced.
func (f Format) WithByteOrder(order ByteOrder) Format {
	f.ByteOrder = order
	return f
}

func (f Format) String() string {
	order := "le"
	if f.ByteOrder == BigEndian {
		order = "be"
	}
	ordering := "interleaved"
	if f.Ordering == NonInterleaved {
		ordering = "noninterleaved"
	}
	return fmt.Sprintf("%s/%d/%d/%s/%s", f.Encoding, f.SampleRate, f.NumChannels, ordering, order)
}
