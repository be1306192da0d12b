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

package ordinaryclock

import (
	"context"
	"math/rand"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soundondigital/aes67rx/localclock"
	"github.com/soundondigital/aes67rx/ptp/protocol"
)

// maxMissedSyncsBeforeWarn is the number of consecutive Sync periods the
// engine tolerates without a Sync before logging a warning (spec §4.4).
const maxMissedSyncsBeforeWarn = 5

// Transport is the minimal send/receive surface the engine needs; the
// session wires it to real multicast UDP sockets.
type Transport interface {
	Send(b []byte, dst net.Addr) error
	LocalAddr() net.Addr
}

// Engine owns a Port and drives its timers: Delay-Req scheduling jitter,
// missed-Sync detection, and periodic eviction sweeps. It does not own the
// receive loop; UDPTransport.Run reads packets off the wire and calls the
// Handle* methods on Engine.Port directly.
type Engine struct {
	Port *Port

	transport Transport
	master    net.Addr // current parent's transport address, set by UDPTransport

	rng *rand.Rand

	consecutiveMissedSyncs int
	lastSyncAt             time.Time

	log *log.Entry
}

// NewEngine creates an Engine wrapping a freshly-created Port. snapshot is
// handed through to the Port unchanged, so the session can share it with the
// audio callback (spec §9).
func NewEngine(identity protocol.PortIdentity, profile protocol.Profile, clock *localclock.Clock, snapshot *localclock.Snapshotter, transport Transport) *Engine {
	return &Engine{
		Port:      NewPort(identity, profile, clock, snapshot),
		transport: transport,
		rng:       rand.New(rand.NewSource(int64(identity.ClockIdentity))),
		log:       log.WithField("port", identity.String()),
	}
}

// SetMaster updates the transport address Delay-Req is sent to, from the
// source address of the Announce that (re)opened the current parent. Announce
// is a general message and may arrive from the parent's general port 320;
// Delay-Req is an event message and must target event port 319 (spec §6.1),
// so the port is corrected here regardless of what the Announce's source
// port happened to be.
func (e *Engine) SetMaster(addr net.Addr) {
	if udp, ok := addr.(*net.UDPAddr); ok {
		addr = &net.UDPAddr{IP: udp.IP, Port: protocol.PortEvent, Zone: udp.Zone}
	}
	e.master = addr
}

// NoteSyncReceived resets the missed-Sync counter; call this whenever a
// Sync from the current parent is handled.
func (e *Engine) NoteSyncReceived(now time.Time) {
	e.consecutiveMissedSyncs = 0
	e.lastSyncAt = now
}

// CheckMissedSyncs logs a warning once maxMissedSyncsBeforeWarn consecutive
// Sync periods have elapsed with nothing received (spec §4.4, "missed Sync
// tracker").
func (e *Engine) CheckMissedSyncs(now time.Time) {
	interval := e.Port.profile.SyncInterval()
	if interval <= 0 || e.lastSyncAt.IsZero() {
		return
	}
	missed := int(now.Sub(e.lastSyncAt) / interval)
	if missed <= e.consecutiveMissedSyncs {
		return
	}
	e.consecutiveMissedSyncs = missed
	if missed >= maxMissedSyncsBeforeWarn {
		e.log.Warnf("missed %d consecutive Sync messages from parent", missed)
	}
}

// delayReqJitter returns a delay in [0.75, 1.5) * the profile's minimum
// Delay-Req interval, matching the randomized transmission spec §4.4
// requires to avoid synchronized Delay-Req storms across slaves.
func (e *Engine) delayReqJitter() time.Duration {
	base := e.Port.profile.MinDelayReqInterval()
	factor := 0.75 + e.rng.Float64()*0.75
	return time.Duration(float64(base) * factor)
}

// PumpDelayRequests sends a Delay-Req for every sync sequence that has
// become ready since the last call, after waiting out the jittered delay.
// It returns the number of requests sent.
func (e *Engine) PumpDelayRequests(ctx context.Context, nowNS func() int64) int {
	sent := 0
	for _, key := range e.Port.ReadySyncSequences() {
		reqSeq, ok := e.Port.ScheduleDelayReq(key)
		if !ok {
			continue
		}

		select {
		case <-time.After(e.delayReqJitter()):
		case <-ctx.Done():
			return sent
		}

		req := &protocol.SyncDelayReq{}
		req.SdoIDAndMsgType = protocol.NewSdoIDAndMsgType(protocol.MessageDelayReq, 0)
		req.Version = protocol.MajorVersion
		req.DomainNumber = e.Port.profile.DomainNumber
		req.SourcePortIdentity = e.Port.identity
		req.SequenceID = reqSeq
		req.LogMessageInterval = e.Port.profile.LogMinDelayReqInterval

		b, err := req.MarshalBinary()
		if err != nil {
			e.log.Errorf("marshal Delay-Req: %v", err)
			continue
		}
		if e.master == nil {
			continue
		}
		if err := e.transport.Send(b, e.master); err != nil {
			e.log.Errorf("send Delay-Req: %v", err)
			continue
		}
		if err := e.Port.OnDelayReqSent(reqSeq, nowNS()); err != nil {
			e.log.Errorf("record Delay-Req send: %v", err)
			continue
		}
		sent++
	}
	return sent
}

// Sweep runs the periodic housekeeping the session's ticker should invoke
// at roughly the Sync interval: stale-Announce eviction, missed-Sync
// detection and expired-sequence cleanup.
func (e *Engine) Sweep(now time.Time, nowNS int64) {
	e.Port.EvictStaleAnnounces(now)
	e.Port.EvictStaleSequences(nowNS)
	e.CheckMissedSyncs(now)
}
