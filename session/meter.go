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

package session

import (
	"math"

	"github.com/soundondigital/aes67rx/bytesx"
	"github.com/soundondigital/aes67rx/rtpaudio"
)

// SignalLevels is one callback's worth of running RMS/peak measurement
// (spec §4.7 "Signal monitoring"). NaN represents true digital silence or
// an encoding this meter does not support.
type SignalLevels struct {
	RMSDB  float64
	PeakDB float64
	MaxAbs float64
}

const (
	normalizeS16 = 32768.0
	normalizeS24 = 8388608.0
	normalizeS32 = 2147483648.0
)

// measureSignal computes RMS/peak dBFS over the whole samples of enc held
// in data, decoding each one as little-endian — the caller
// measures after any byte-swap, matching
// original_source/apps/aes67_rx_cli/src/RxSession.cpp's
// portaudio_stream_callback ("Signal monitoring (after swap, still same
// numeric values)"). Only pcm_s16/s24/s32 are supported, per the same
// source's calculate_rms_db/calculate_max_abs; every other encoding
// reports NaN.
//
// It accumulates sum-of-squares and max-abs directly over the raw byte
// buffer, the way RxSession.cpp's calculate_rms_db/calculate_max_abs do,
// instead of decoding into an intermediate sample slice: runs on the
// realtime audio thread and must not allocate (spec §5).
func measureSignal(data []byte, enc rtpaudio.Encoding) SignalLevels {
	var sumSquares, maxAbs float64
	var n int

	switch enc {
	case rtpaudio.EncodingPCMS16:
		n = len(data) / 2
		for i := 0; i < n; i++ {
			v := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
			s := float64(v) / normalizeS16
			sumSquares += s * s
			if a := math.Abs(s); a > maxAbs {
				maxAbs = a
			}
		}
	case rtpaudio.EncodingPCMS24:
		n = len(data) / 3
		for i := 0; i < n; i++ {
			v := bytesx.Int24LE(data[i*3 : i*3+3])
			s := float64(v) / normalizeS24
			sumSquares += s * s
			if a := math.Abs(s); a > maxAbs {
				maxAbs = a
			}
		}
	case rtpaudio.EncodingPCMS32:
		n = len(data) / 4
		for i := 0; i < n; i++ {
			v := int32(uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24)
			s := float64(v) / normalizeS32
			sumSquares += s * s
			if a := math.Abs(s); a > maxAbs {
				maxAbs = a
			}
		}
	default:
		return SignalLevels{RMSDB: math.NaN(), PeakDB: math.NaN(), MaxAbs: math.NaN()}
	}

	if n == 0 {
		return SignalLevels{RMSDB: math.NaN(), PeakDB: math.NaN(), MaxAbs: math.NaN()}
	}

	rms := math.Sqrt(sumSquares / float64(n))
	if rms <= 0 {
		return SignalLevels{RMSDB: math.NaN(), PeakDB: math.NaN(), MaxAbs: maxAbs}
	}
	rmsDB := 20 * math.Log10(rms)
	return SignalLevels{RMSDB: rmsDB, PeakDB: 20 * math.Log10(maxAbs), MaxAbs: maxAbs}
}
