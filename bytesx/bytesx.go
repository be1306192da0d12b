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

// Package bytesx provides byte-order conversions and fixed-width integer
// helpers shared by the PTP and RTP wire codecs: 48-bit seconds, 24-bit PCM
// samples, and the wrapping/fixed-point numeric types spec'd for PTP time
// math.
package bytesx

import (
	"encoding/binary"
	"unsafe"
)

// HostIsBigEndian reports whether the running platform's native byte order
// is big-endian (grounded on facebook-time/hostendian's unsafe-pointer
// probe; true on every commodity platform this receiver targets is false,
// but the check stays honest rather than assuming little-endian).
var HostIsBigEndian bool

func init() {
	var probe uint16 = 0x0100
	if *(*byte)(unsafe.Pointer(&probe)) == 0x01 {
		HostIsBigEndian = true
	}
}

// PutUint48 stores v (which must fit in 48 bits) into b in big-endian order.
// b must be at least 6 bytes long.
func PutUint48(b []byte, v uint64) {
	_ = b[5]
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

// Uint48 reads a 48-bit big-endian unsigned integer from b.
// b must be at least 6 bytes long.
func Uint48(b []byte) uint64 {
	_ = b[5]
	return uint64(b[5]) | uint64(b[4])<<8 | uint64(b[3])<<16 |
		uint64(b[2])<<24 | uint64(b[1])<<32 | uint64(b[0])<<40
}

// PutInt24LE packs a signed 24-bit sample into 3 little-endian bytes.
// Values outside [-2^23, 2^23) are truncated to 24 bits (matching the
// ravennakit int24_t constructor, which clamps at the caller).
func PutInt24LE(b []byte, v int32) {
	_ = b[2]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// Int24LE unpacks 3 little-endian bytes into a sign-extended int32.
// This is the bit-exact form of
// ((((b0) | (b1)<<8 | ((int8)b2)<<16) << 8) >> 8) from spec §4.1.
func Int24LE(b []byte) int32 {
	_ = b[2]
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	return (v << 8) >> 8
}

// SwapBytes reverses the byte order of each bytesPerSample-wide sample in
// buf, in place. bytesPerSample must be one of {1, 2, 3, 4, 8}; 1 is a no-op.
// Calling it twice on the same buffer is the identity (an involution).
func SwapBytes(buf []byte, bytesPerSample int) {
	if bytesPerSample <= 1 {
		return
	}
	for off := 0; off+bytesPerSample <= len(buf); off += bytesPerSample {
		sample := buf[off : off+bytesPerSample]
		for i, j := 0, len(sample)-1; i < j; i, j = i+1, j-1 {
			sample[i], sample[j] = sample[j], sample[i]
		}
	}
}

// BigEndian is the wire order used by PTP headers, RTP headers and PCM
// samples on AES67 networks.
var BigEndian = binary.BigEndian
