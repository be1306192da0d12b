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
	"sync"
	"sync/atomic"

	"github.com/soundondigital/aes67rx/bytesx"
)

// Anchor records the most recently ingested packet's identifying timestamps,
// for telemetry and resync (spec §4.5 "Record the anchor").
type Anchor struct {
	SequenceNumber uint16
	RTPTimestamp   uint32
	HostReceiveNS  int64
}

// Ring is the timestamp-indexed playout ring of spec §4.5: packets are
// written at offset `rtp_timestamp mod ring_frames`, and the realtime reader
// drains it by RTP timestamp rather than by arrival order. Frames never
// written, or evicted by a wraparound write, read back as ground_value.
//
// The ingest side (producer) and the realtime-read side (consumer) run on
// different threads with no lock between them; only the cursors and the
// anchor are synchronized, matching spec §5's "acquire/release on
// producer/consumer cursors ensures sample bytes become visible before the
// cursor advances" contract.
type Ring struct {
	frames        int
	bytesPerFrame int
	ground        byte

	buf        []byte
	frameStamp []uint32 // abs rtp_timestamp currently occupying each frame slot
	frameValid []bool

	producerCursor atomic.Uint32
	consumerCursor atomic.Uint32

	// forceResync is set after a catastrophic-desync read; it makes the
	// next Read bypass the drift check and seek unconditionally, since
	// otherwise the stale consumer cursor would immediately redrift past
	// ring_frames/2 and desync forever (spec §8 scenario 5).
	forceResync atomic.Bool

	mu     sync.Mutex // guards anchor only; producer-side, not on the realtime path
	anchor Anchor
}

// NewRing allocates a ring of the given capacity in frames for the given
// format.
func NewRing(ringFrames int, bytesPerFrame int, ground byte) *Ring {
	return &Ring{
		frames:        ringFrames,
		bytesPerFrame: bytesPerFrame,
		ground:        ground,
		buf:           make([]byte, ringFrames*bytesPerFrame),
		frameStamp:    make([]uint32, ringFrames),
		frameValid:    make([]bool, ringFrames),
	}
}

// Frames returns the ring's capacity in frames.
func (r *Ring) Frames() int { return r.frames }

// ProducerCursor returns the current producer cursor (next RTP timestamp not
// yet guaranteed written).
func (r *Ring) ProducerCursor() uint32 { return r.producerCursor.Load() }

// ConsumerCursor returns the current realtime-read cursor.
func (r *Ring) ConsumerCursor() uint32 { return r.consumerCursor.Load() }

// Accepts reports whether a packet whose first frame is ts falls within the
// reorder window around the producer cursor (spec §4.5 "Reordering window").
func (r *Ring) Accepts(ts uint32) bool {
	drift := bytesx.DiffU32(ts, r.producerCursor.Load())
	return abs32(drift) <= int32(r.frames/2)
}

// Write copies a packet's payload into the ring at offset `ts mod frames`,
// records the anchor, and advances the producer cursor to
// max(cursor, ts+numFrames) using wrapping-aware comparison so an
// out-of-order packet never rewinds it (spec §4.5 steps 3-5).
//
// payload must hold exactly numFrames*bytesPerFrame bytes, in wire (big
// endian) byte order; Write does not swap bytes, matching the "preserve
// big-endian order in the ring" directive.
func (r *Ring) Write(ts uint32, payload []byte, numFrames int, seq uint16, hostReceiveNS int64) {
	for i := 0; i < numFrames; i++ {
		slot := int((ts + uint32(i)) % uint32(r.frames))
		off := slot * r.bytesPerFrame
		copy(r.buf[off:off+r.bytesPerFrame], payload[i*r.bytesPerFrame:(i+1)*r.bytesPerFrame])
		r.frameStamp[slot] = ts + uint32(i)
		r.frameValid[slot] = true
	}

	r.mu.Lock()
	r.anchor = Anchor{SequenceNumber: seq, RTPTimestamp: ts, HostReceiveNS: hostReceiveNS}
	r.mu.Unlock()

	next := ts + uint32(numFrames)
	for {
		cur := r.producerCursor.Load()
		if bytesx.DiffU32(next, cur) <= 0 {
			return
		}
		if r.producerCursor.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Anchor returns the most recently written packet's anchor.
func (r *Ring) Anchor() Anchor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anchor
}

// ReadResult is the outcome of a realtime read (spec §4.5 "Realtime read").
type ReadResult struct {
	// FirstRTPTimestamp is the RTP timestamp of the first frame actually
	// read, for telemetry and drift accounting.
	FirstRTPTimestamp uint32
	// Desync reports a catastrophic desync: out was entirely ground-filled
	// and the cursor was left for the caller to resync on the next call.
	Desync bool
}

// Read fills out (which must hold exactly frames*bytesPerFrame bytes)
// following the three-branch drift-correction algorithm of spec §4.5.
// hasTarget false means "target_rtp_ts = None": read the next frames at the
// consumer cursor unconditionally.
func (r *Ring) Read(out []byte, frames int, targetRTPTs uint32, hasTarget bool) ReadResult {
	cursor := r.consumerCursor.Load()

	if !hasTarget {
		first := r.readAt(out, cursor, frames)
		r.consumerCursor.Store(cursor + uint32(frames))
		return ReadResult{FirstRTPTimestamp: first}
	}

	if r.forceResync.Load() {
		r.forceResync.Store(false)
		first := r.readAt(out, targetRTPTs, frames)
		r.consumerCursor.Store(targetRTPTs + uint32(frames))
		return ReadResult{FirstRTPTimestamp: first}
	}

	drift := bytesx.DiffU32(targetRTPTs, cursor)
	absDrift := abs32(drift)

	switch {
	case absDrift <= int32(frames):
		first := r.readAt(out, cursor, frames)
		r.consumerCursor.Store(cursor + uint32(frames))
		return ReadResult{FirstRTPTimestamp: first}
	case absDrift <= int32(r.frames/2):
		first := r.readAt(out, targetRTPTs, frames)
		r.consumerCursor.Store(targetRTPTs + uint32(frames))
		return ReadResult{FirstRTPTimestamp: first}
	default:
		r.fillGround(out)
		r.forceResync.Store(true)
		return ReadResult{FirstRTPTimestamp: targetRTPTs, Desync: true}
	}
}

// readAt copies frames starting at ts into out, filling any frame slot the
// producer has not (yet) written with ground values, and returns ts.
func (r *Ring) readAt(out []byte, ts uint32, frames int) uint32 {
	for i := 0; i < frames; i++ {
		slot := int((ts + uint32(i)) % uint32(r.frames))
		off := i * r.bytesPerFrame
		dst := out[off : off+r.bytesPerFrame]
		if r.frameValid[slot] && r.frameStamp[slot] == ts+uint32(i) {
			copy(dst, r.buf[slot*r.bytesPerFrame:(slot+1)*r.bytesPerFrame])
		} else {
			r.fillGroundFrame(dst)
		}
	}
	return ts
}

func (r *Ring) fillGround(out []byte) {
	for i := range out {
		out[i] = r.ground
	}
}

func (r *Ring) fillGroundFrame(dst []byte) {
	for i := range dst {
		dst[i] = r.ground
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
