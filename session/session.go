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

// Package session implements C7, the coordinator that ties a parsed SDP
// stream description to a PTP ordinary clock and an RTP audio receiver and
// bridges the platform audio callback to the result (spec §4.7).
package session

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soundondigital/aes67rx/bytesx"
	"github.com/soundondigital/aes67rx/localclock"
	"github.com/soundondigital/aes67rx/ptp/ordinaryclock"
	"github.com/soundondigital/aes67rx/ptp/protocol"
	"github.com/soundondigital/aes67rx/rtpaudio"
	"github.com/soundondigital/aes67rx/sdp"
)

// Config is the input to New: a parsed stream description, the resolved
// network interface to join both the PTP and RTP multicast groups on, the
// device's preferred sample format, and the tuning knobs spec §4.5/§4.7
// leave to the implementation.
type Config struct {
	Interface          *net.Interface
	Stream             *sdp.StreamDescription
	DeviceByteOrder     rtpaudio.ByteOrder
	RingFrames          int
	PlayoutDelayFrames  uint32
}

// Session is C7.
type Session struct {
	cfg Config

	clock     *localclock.Clock
	snapshot  *localclock.Snapshotter
	port      *ordinaryclock.Port
	engine    *ordinaryclock.Engine
	transport *ordinaryclock.UDPTransport

	receiver     *rtpaudio.Receiver
	wireFormat   rtpaudio.Format
	deviceFormat rtpaudio.Format

	ctx    context.Context
	cancel context.CancelFunc

	stopCh        chan struct{}
	eventLoopDone sync.WaitGroup
	bgDone        sync.WaitGroup

	lastOffsetNS atomic.Int64
	desyncCount  atomic.Uint64

	// rmsDBBits/peakDBBits hold the latest SignalLevels as
	// math.Float64bits, so the realtime AudioCallback can publish them
	// without ever blocking on a mutex (spec §5).
	rmsDBBits  atomic.Uint64
	peakDBBits atomic.Uint64

	stats *Stats
	log   *log.Entry
}

// New validates cfg and instantiates C5 (PTP) and C6 (RTP) for the given
// stream, per spec §4.7 steps 1-3. It does not start any goroutines or
// sockets beyond the PTP/RTP joins themselves; call Start to begin
// processing.
func New(cfg Config) (*Session, error) {
	if cfg.Interface == nil {
		return nil, fmt.Errorf("session: no interface selector resolved")
	}
	addrs, err := cfg.Interface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("session: resolve interface addresses: %w", err)
	}
	if n := countUsableIPv4(addrs); n != 1 {
		return nil, fmt.Errorf("session: interface %s must resolve to exactly one IPv4 address usable for multicast, found %d", cfg.Interface.Name, n)
	}
	if cfg.Stream == nil {
		return nil, fmt.Errorf("session: no stream description")
	}

	wireFormat := rtpaudio.Format{
		ByteOrder:   rtpaudio.BigEndian,
		Encoding:    cfg.Stream.Encoding,
		Ordering:    rtpaudio.Interleaved,
		SampleRate:  cfg.Stream.SampleRate,
		NumChannels: cfg.Stream.Channels,
	}
	if !wireFormat.Valid() {
		return nil, fmt.Errorf("session: incomplete wire format %+v", wireFormat)
	}
	deviceFormat := wireFormat.WithByteOrder(cfg.DeviceByteOrder)

	clock := localclock.New()

	clockIdentity, err := protocol.NewClockIdentity(cfg.Interface.HardwareAddr)
	if err != nil {
		clockIdentity = protocol.ClockIdentity(0x0000000000000001)
	}
	identity := protocol.PortIdentity{ClockIdentity: clockIdentity, PortNumber: 1}

	transport, err := ordinaryclock.NewUDPTransport(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("session: start PTP transport: %w", err)
	}
	snapshot := localclock.NewSnapshotter(clock)
	engine := ordinaryclock.NewEngine(identity, protocol.DefaultDelayRequestResponseProfile, &clock, snapshot, transport)
	port := engine.Port

	ringFrames := cfg.RingFrames
	if ringFrames <= 0 {
		ringFrames = int(cfg.Stream.SampleRate) // 1 second default
	}
	receiver, err := rtpaudio.NewReceiver(cfg.Interface,
		&net.UDPAddr{IP: cfg.Stream.MulticastAddr, Port: int(cfg.Stream.Port)},
		cfg.Stream.PayloadType, wireFormat, cfg.Stream.FramesPerPacket, ringFrames)
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("session: start RTP receiver: %w", err)
	}

	s := &Session{
		cfg:          cfg,
		clock:        &clock,
		snapshot:     snapshot,
		port:         port,
		engine:       engine,
		transport:    transport,
		receiver:     receiver,
		wireFormat:   wireFormat,
		deviceFormat: deviceFormat,
		stopCh:       make(chan struct{}),
		stats:        NewStats(),
		log:          log.WithField("component", "session.Session"),
	}
	return s, nil
}

// Stats returns the session's Prometheus collectors, for mounting on an HTTP
// mux or starting standalone via Stats.Serve.
func (s *Session) Stats() *Stats { return s.stats }

// Start begins PTP and RTP processing (spec §4.7 step 2/3: "subscribe self
// to PTP parent/state changes" / "receiver parameter and stream-state
// updates").
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.port.Start()
	s.eventLoopDone.Add(1)
	go s.eventLoop()

	s.bgDone.Add(3)
	go func() { defer s.bgDone.Done(); s.transport.Run(s.ctx, s.port, s.engine) }()
	go func() { defer s.bgDone.Done(); s.delayRequestLoop() }()
	go func() { defer s.bgDone.Done(); s.sweepLoop() }()

	s.receiver.Start(s.ctx)
}

func (s *Session) delayRequestLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		n := s.engine.PumpDelayRequests(s.ctx, func() int64 { return localclock.NowHost() })
		if n == 0 {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (s *Session) sweepLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.engine.Sweep(now, localclock.NowHost())
			s.stats.update(s, s.LastLevels())
		}
	}
}

// Stop unsubscribes, stops C6, then stops C5, waiting for each to
// acknowledge (spec §4.7 step 5).
func (s *Session) Stop() {
	close(s.stopCh)
	if s.cancel != nil {
		s.cancel()
	}
	s.eventLoopDone.Wait()

	s.receiver.Stop()

	s.transport.Close()
	s.bgDone.Wait()
}

// AudioCallback is the platform audio callback's entry point. out must hold
// exactly frames*deviceFormat.BytesPerFrame() bytes. It implements the
// two-phase drift correction of spec §4.5/§4.7: a first read with no
// target, then (only if the returned timestamp drifted from the clock's
// own prediction by more than 2*frames) a second, target-seeking read.
//
// Must not allocate or block: it runs on the realtime audio thread (spec
// §5).
func (s *Session) AudioCallback(out []byte, frames int) SignalLevels {
	clock := s.snapshot.Load()
	if !clock.IsCalibrated() {
		fillGround(out, s.wireFormat.GroundValue())
		return SignalLevels{RMSDB: math.NaN(), PeakDB: math.NaN(), MaxAbs: math.NaN()}
	}

	hostNowNS := localclock.NowHost()
	ptpTS := clock.Now(hostNowNS).ToRTPTimestamp32(s.wireFormat.SampleRate) - s.cfg.PlayoutDelayFrames

	result := s.receiver.ReadRealtime(out, frames, 0, false, s.deviceFormat)

	drift := bytesx.DiffU32(ptpTS, result.FirstRTPTimestamp)
	if abs32(drift) > int32(2*frames) {
		result = s.receiver.ReadRealtime(out, frames, ptpTS, true, s.deviceFormat)
	}

	levels := measureSignal(out, s.wireFormat.Encoding)
	s.rmsDBBits.Store(math.Float64bits(levels.RMSDB))
	s.peakDBBits.Store(math.Float64bits(levels.PeakDB))
	return levels
}

// LastOffsetNS is the most recently measured PTP offset, for telemetry.
func (s *Session) LastOffsetNS() int64 { return s.lastOffsetNS.Load() }

// DesyncCount is the cumulative number of realtime-read desync events.
func (s *Session) DesyncCount() uint64 { return s.desyncCount.Load() }

// LastLevels returns the most recent signal measurement published by
// AudioCallback, for the telemetry thread (spec §4.7 "Signal monitoring").
func (s *Session) LastLevels() SignalLevels {
	return SignalLevels{
		RMSDB:  math.Float64frombits(s.rmsDBBits.Load()),
		PeakDB: math.Float64frombits(s.peakDBBits.Load()),
	}
}

func fillGround(out []byte, ground byte) {
	for i := range out {
		out[i] = ground
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func countUsableIPv4(addrs []net.Addr) int {
	n := 0
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.To4() == nil || ip.IsLoopback() {
			continue
		}
		n++
	}
	return n
}

