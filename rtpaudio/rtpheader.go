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

package rtpaudio

import (
	"fmt"

	"github.com/pion/rtp"
)

// PacketHeader is the subset of the 12-byte fixed RTP header this receiver
// consumes (spec §6.2): version, payload type, sequence number, RTP
// timestamp and SSRC.
type PacketHeader struct {
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
}

// DecodePacketHeader parses b's fixed RTP header via pion/rtp and returns
// the header plus the payload bytes (a view into b, not a copy).
func DecodePacketHeader(b []byte) (PacketHeader, []byte, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		return PacketHeader{}, nil, fmt.Errorf("rtpaudio: decode RTP header: %w", err)
	}
	if pkt.Version != 2 {
		return PacketHeader{}, nil, fmt.Errorf("rtpaudio: unsupported RTP version %d", pkt.Version)
	}
	h := PacketHeader{
		PayloadType:    pkt.PayloadType,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
	}
	return h, pkt.Payload, nil
}
