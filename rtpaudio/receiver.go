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
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/soundondigital/aes67rx/bytesx"
)

// reusePortListenConfig sets SO_REUSEADDR before bind, so more than one
// receiver process on the same host can join the same multicast group/port
// (matches facebook-time/ptp/ptp4u/server/worker.go's socket tuning for the
// same reason, applied here to the RTP socket instead of the PTP one).
var reusePortListenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

// Receiver is C6: it joins an AES67 multicast RTP flow, ingests packets into
// a playout Ring, and serves drift-corrected realtime reads to the audio
// callback (spec §4.5).
type Receiver struct {
	format          Format
	framesPerPacket int
	payloadType     uint8

	conn *net.UDPConn
	pc   *ipv4.PacketConn
	iface *net.Interface
	group *net.UDPAddr

	ring *Ring

	events chan Event
	log    *log.Entry

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	packetsReceived atomic.Uint64
	packetsDropped  atomic.Uint64
	payloadMismatch atomic.Uint64

	announcedOnce atomic.Bool
}

// NewReceiver opens a UDP socket bound to group's port and joins group on
// iface (spec §4.5 "Join the multicast group on the configured interface.
// Bind to the RTP port."). ringFrames should be large enough to cover the
// session's reorder and drift budget; the session picks it from the SDP's
// sample rate and a configured depth.
func NewReceiver(iface *net.Interface, group *net.UDPAddr, payloadType uint8, format Format, framesPerPacket, ringFrames int) (*Receiver, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("rtpaudio: invalid format %+v", format)
	}

	pconn, err := reusePortListenConfig.ListenPacket(context.Background(), "udp4", (&net.UDPAddr{IP: group.IP, Port: group.Port}).String())
	if err != nil {
		return nil, fmt.Errorf("rtpaudio: listen %s: %w", group, err)
	}
	conn := pconn.(*net.UDPConn)
	if err := conn.SetReadBuffer(1024 * 1024); err != nil {
		log.WithError(err).Warn("rtpaudio: failed to set socket read buffer")
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(iface, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rtpaudio: join group %s on %s: %w", group, iface.Name, err)
	}

	r := &Receiver{
		format:          format,
		framesPerPacket: framesPerPacket,
		payloadType:     payloadType,
		conn:            conn,
		pc:              pc,
		iface:           iface,
		group:           group,
		ring:            NewRing(ringFrames, format.BytesPerFrame(), format.GroundValue()),
		events:          make(chan Event, eventCapacity),
		stopCh:          make(chan struct{}),
		log:             log.WithField("component", "rtpaudio.Receiver"),
	}
	return r, nil
}

// Events returns the channel the session should poll for receiver parameter
// and stream-state updates.
func (r *Receiver) Events() <-chan Event { return r.events }

// Start launches the ingest loop on its own goroutine, modeling spec §5's
// dedicated IO reactor task per stream.
func (r *Receiver) Start(ctx context.Context) {
	publish(r.events, StreamStateChanged{Previous: StreamStateWaiting, Current: StreamStateActive})
	r.wg.Add(1)
	go r.ingestLoop(ctx)
}

// Stop closes the socket and waits for the ingest goroutine to exit.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.conn.Close()
	})
	r.wg.Wait()
	publish(r.events, StreamStateChanged{Previous: StreamStateActive, Current: StreamStateStopped})
}

func (r *Receiver) ingestLoop(ctx context.Context) {
	defer r.wg.Done()

	buf := make([]byte, 65536)
	expectedPayload := r.framesPerPacket * r.format.BytesPerFrame()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		default:
		}

		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.stopCh:
				return
			default:
			}
			r.log.WithError(err).Warn("rtpaudio: read failed")
			continue
		}

		header, payload, err := DecodePacketHeader(buf[:n])
		if err != nil {
			r.packetsDropped.Add(1)
			continue
		}
		if header.PayloadType != r.payloadType {
			r.packetsDropped.Add(1)
			continue
		}
		if len(payload) != expectedPayload {
			r.payloadMismatch.Add(1)
			r.packetsDropped.Add(1)
			continue
		}
		if !r.ring.Accepts(header.Timestamp) {
			r.packetsDropped.Add(1)
			continue
		}

		r.packetsReceived.Add(1)
		r.ring.Write(header.Timestamp, payload, r.framesPerPacket, header.SequenceNumber, time.Now().UnixNano())

		if r.announcedOnce.CompareAndSwap(false, true) {
			publish(r.events, ParametersUpdated{Format: r.format, FramesPerPacket: r.framesPerPacket})
		}
	}
}

// PacketsReceived, PacketsDropped and PayloadMismatches are cumulative
// ingest counters for the stats/telemetry thread (spec §5).
func (r *Receiver) PacketsReceived() uint64   { return r.packetsReceived.Load() }
func (r *Receiver) PacketsDropped() uint64    { return r.packetsDropped.Load() }
func (r *Receiver) PayloadMismatches() uint64 { return r.payloadMismatch.Load() }

// Anchor exposes the ring's most recently ingested packet anchor.
func (r *Receiver) Anchor() Anchor { return r.ring.Anchor() }

// ReadRealtime is the audio-callback entry point: it delegates to the ring's
// drift-corrected Read and, if deviceFormat's byte order differs from the
// wire format (always big-endian in the ring), swaps bytes in place on out
// before returning (spec §4.6 "Swap on the realtime path only when the
// destination device format differs").
//
// It must not allocate or block; it runs on the platform's realtime audio
// thread (spec §5).
func (r *Receiver) ReadRealtime(out []byte, frames int, targetRTPTs uint32, hasTarget bool, deviceFormat Format) ReadResult {
	result := r.ring.Read(out, frames, targetRTPTs, hasTarget)
	if result.Desync {
		publish(r.events, StreamStateChanged{Previous: StreamStateActive, Current: StreamStateDesynced})
	}
	if deviceFormat.ByteOrder != r.format.ByteOrder {
		bytesx.SwapBytes(out, r.format.BytesPerSample())
	}
	return result
}

// Format returns the wire format the receiver was constructed with.
func (r *Receiver) Format() Format { return r.format }

// Ring exposes the underlying playout ring, for tests and for a session
// wanting direct cursor/anchor introspection.
func (r *Receiver) Ring() *Ring { return r.ring }
