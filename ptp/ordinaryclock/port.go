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

// Package ordinaryclock implements the receive-only subset of the IEEE
// 1588-2019 ordinary-clock port state machine: BMCA over Announce
// candidates, the Sync/Follow-Up/Delay-Req/Delay-Resp sequence, and the
// timers that drive both (spec §4.4).
package ordinaryclock

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soundondigital/aes67rx/localclock"
	"github.com/soundondigital/aes67rx/ptp/bmc"
	"github.com/soundondigital/aes67rx/ptp/protocol"
)

type syncKey struct {
	source protocol.PortIdentity
	seq    uint16
}

// meanDelayWindow is the length of the sliding median of path-delay
// samples stored on the port data set (spec §4.4).
const meanDelayWindow = 16

// Port is one IEEE 1588 ordinary-clock port. It owns no sockets; the
// caller feeds it decoded packets and periodic ticks, and reads its
// decisions back via Events() and the fields BMCA populates.
type Port struct {
	mu sync.Mutex

	identity protocol.PortIdentity
	profile  protocol.Profile
	state    protocol.PortState

	foreignMasters *ForeignMasterTable
	parent         *protocol.Announce // currently adopted parent, nil if none

	pendingSync     map[syncKey]*DelaySequence
	nextDelayReqSeq uint16
	pendingDelayReq map[uint16]*DelaySequence

	clock    *localclock.Clock
	snapshot *localclock.Snapshotter

	meanDelaySamples []float64
	toleranceStreak  int

	lastAnnounceAt time.Time

	events chan Event
	log    *log.Entry
}

// NewPort creates a port in the initializing state. snapshot is the
// seqlock-published view of clock that the realtime audio thread reads; the
// port publishes to it itself, immediately after every Adjust/Step, while
// still holding mu, so the snapshot is never more than one mutation stale
// (spec §9).
func NewPort(identity protocol.PortIdentity, profile protocol.Profile, clock *localclock.Clock, snapshot *localclock.Snapshotter) *Port {
	return &Port{
		identity:        identity,
		profile:         profile,
		state:           protocol.PortStateInitializing,
		foreignMasters:  NewForeignMasterTable(),
		pendingSync:     make(map[syncKey]*DelaySequence),
		pendingDelayReq: make(map[uint16]*DelaySequence),
		clock:           clock,
		snapshot:        snapshot,
		events:          make(chan Event, eventCapacity),
		log:             log.WithField("port", identity.String()),
	}
}

// Events returns the channel the session drains for parent/state/offset
// notifications.
func (p *Port) Events() <-chan Event { return p.events }

// State returns the port's current state.
func (p *Port) State() protocol.PortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start transitions initializing -> listening once the caller's sockets
// are bound (spec §4.4: "initializing -> listening on successful socket
// bind").
func (p *Port) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setState(protocol.PortStateListening)
}

// Fault transitions the port to faulty on an irrecoverable socket error.
func (p *Port) Fault(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setState(protocol.PortStateFaulty)
	publish(p.events, Fault{Reason: reason})
}

// Reset transitions faulty -> initializing on operator reset.
func (p *Port) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == protocol.PortStateFaulty {
		p.setState(protocol.PortStateInitializing)
	}
}

func (p *Port) setState(next protocol.PortState) {
	if p.state == next {
		return
	}
	prev := p.state
	p.state = next
	publish(p.events, StateChanged{Previous: prev, Current: next})
}

// HandleAnnounce registers a received Announce and re-runs BMCA.
func (p *Port) HandleAnnounce(a protocol.Announce, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.foreignMasters.Register(a, now)
	p.lastAnnounceAt = now
	p.runBMCA(now)
}

// runBMCA re-evaluates the best foreign master and adopts it if it is
// strictly better than the current parent (spec §4.4: "The new parent is
// adopted only on strict better or better_by_topology").
func (p *Port) runBMCA(now time.Time) {
	timeout := p.profile.AnnounceInterval() * time.Duration(p.profile.AnnounceReceiptTimeout)
	candidates := p.foreignMasters.Qualified(now, timeout)
	if len(candidates) == 0 {
		return
	}

	best := candidates[0]
	bestSet := bmc.FromAnnounce(&best, p.identity)
	for _, cand := range candidates[1:] {
		candSet := bmc.FromAnnounce(&cand, p.identity)
		if candSet.Compare(bestSet) == bmc.Better || candSet.Compare(bestSet) == bmc.BetterByTopology {
			best, bestSet = cand, candSet
		}
	}

	adopt := p.parent == nil
	if !adopt {
		currentSet := bmc.FromAnnounce(p.parent, p.identity)
		result := bestSet.Compare(currentSet)
		adopt = result == bmc.Better || result == bmc.BetterByTopology
	}
	if !adopt {
		return
	}

	changed := p.parent == nil || p.parent.GrandmasterIdentity != best.GrandmasterIdentity
	p.parent = &candidates[indexOf(candidates, best)]
	if p.state == protocol.PortStateListening {
		p.setState(protocol.PortStateUncalibrated)
	}
	if changed {
		p.toleranceStreak = 0
		p.clock.Step(0)
		p.snapshot.Store(*p.clock)
		publish(p.events, ParentChanged{
			GrandmasterIdentity: p.parent.GrandmasterIdentity,
			ParentPortIdentity:  p.parent.Header.SourcePortIdentity,
			StepsRemoved:        p.parent.StepsRemoved,
		})
	}
}

func indexOf(candidates []protocol.Announce, want protocol.Announce) int {
	for i, c := range candidates {
		if c.Header.SourcePortIdentity == want.Header.SourcePortIdentity && c.GrandmasterIdentity == want.GrandmasterIdentity {
			return i
		}
	}
	return 0
}

// EvictStaleAnnounces drops candidates that have gone quiet and, if the
// current parent was among them, falls back to listening (spec §4.4:
// "{uncalibrated, slave} -> listening when announce_receipt_timeout ...
// elapses without a qualifying Announce from the current parent").
func (p *Port) EvictStaleAnnounces(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	timeout := p.profile.AnnounceInterval() * time.Duration(p.profile.AnnounceReceiptTimeout)
	p.foreignMasters.EvictStale(now, timeout)

	if p.parent != nil && now.Sub(p.lastAnnounceAt) > timeout {
		p.parent = nil
		if p.state == protocol.PortStateUncalibrated || p.state == protocol.PortStateSlave {
			p.setState(protocol.PortStateListening)
		}
	}
}

// HandleSync opens a new delay sequence for a received Sync. twoStep
// false means the Sync itself carries t1; true defers t1 to a matching
// Follow-Up (spec §4.4).
func (p *Port) HandleSync(s protocol.SyncDelayReq, hostNowNS int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := syncKey{source: s.Header.SourcePortIdentity, seq: s.SequenceID}
	if !p.fromParent(s.Header.SourcePortIdentity) {
		return
	}

	t2 := hostNowNS
	if s.TwoStep() {
		p.pendingSync[key] = NewTwoStepSequence(t2, hostNowNS)
		return
	}
	t1 := ptpTimestampToNS(s.OriginTimestamp)
	p.pendingSync[key] = NewOneStepSequence(t1, t2, hostNowNS)
}

// HandleFollowUp supplies t1 for a previously-seen two-step Sync.
func (p *Port) HandleFollowUp(f protocol.FollowUp, hostNowNS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := syncKey{source: f.Header.SourcePortIdentity, seq: f.SequenceID}
	seq, ok := p.pendingSync[key]
	if !ok {
		return fmt.Errorf("ordinaryclock: Follow-Up for unknown sequence %d", f.SequenceID)
	}
	t1 := ptpTimestampToNS(f.PreciseOriginTimestamp)
	return seq.OnFollowUp(t1)
}

// ReadySyncSequences returns the keys of sequences that have both t1 and
// t2 and are awaiting a Delay-Req to be scheduled.
func (p *Port) ReadySyncSequences() []syncKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []syncKey
	for k, s := range p.pendingSync {
		if s.ReadyToSchedule() {
			out = append(out, k)
		}
	}
	return out
}

// ScheduleDelayReq marks the given sync sequence scheduled and allocates
// the Delay-Req sequence ID that will be used to match its response.
func (p *Port) ScheduleDelayReq(key syncKey) (reqSeq uint16, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq, exists := p.pendingSync[key]
	if !exists || !seq.ReadyToSchedule() {
		return 0, false
	}
	seq.MarkScheduled()
	reqSeq = p.nextDelayReqSeq
	p.nextDelayReqSeq++
	p.pendingDelayReq[reqSeq] = seq
	delete(p.pendingSync, key)
	return reqSeq, true
}

// OnDelayReqSent records t3 for the sequence identified by reqSeq, once
// the caller has actually written the Delay-Req to the wire.
func (p *Port) OnDelayReqSent(reqSeq uint16, hostNowNS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq, ok := p.pendingDelayReq[reqSeq]
	if !ok {
		return fmt.Errorf("ordinaryclock: no pending Delay-Req with sequence %d", reqSeq)
	}
	return seq.OnDelayReqSent(hostNowNS)
}

// HandleDelayResp completes the matching delay sequence, feeds the offset
// to the local clock, and updates the sliding mean-delay window.
func (p *Port) HandleDelayResp(d protocol.DelayResp, hostNowNS int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d.RequestingPortIdentity != p.identity {
		return nil // not for us
	}
	seq, ok := p.pendingDelayReq[d.SequenceID]
	if !ok {
		return fmt.Errorf("ordinaryclock: Delay-Resp for unknown sequence %d", d.SequenceID)
	}
	t4 := ptpTimestampToNS(d.ReceiveTimestamp)
	offsetNS, delayNS, err := seq.OnDelayResp(t4)
	delete(p.pendingDelayReq, d.SequenceID)
	if err != nil {
		return err
	}

	p.recordMeanDelay(delayNS)
	p.clock.Adjust(offsetNS / 1e9)
	p.snapshot.Store(*p.clock)
	p.updateCalibration(offsetNS)

	publish(p.events, OffsetUpdated{OffsetNS: offsetNS, DelayNS: delayNS, Calibrated: p.clock.IsCalibrated()})
	return nil
}

func (p *Port) recordMeanDelay(delayNS float64) {
	p.meanDelaySamples = append(p.meanDelaySamples, delayNS)
	if len(p.meanDelaySamples) > meanDelayWindow {
		p.meanDelaySamples = p.meanDelaySamples[len(p.meanDelaySamples)-meanDelayWindow:]
	}
}

// MeanLinkDelay returns the median of the last meanDelayWindow path-delay
// samples.
func (p *Port) MeanLinkDelay() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return median(p.meanDelaySamples)
}

func (p *Port) updateCalibration(offsetNS float64) {
	if offsetNS < 0 {
		offsetNS = -offsetNS
	}
	if time.Duration(offsetNS) <= p.profile.CalibrationTolerance {
		p.toleranceStreak++
	} else {
		p.toleranceStreak = 0
	}

	switch p.state {
	case protocol.PortStateUncalibrated:
		if p.toleranceStreak >= p.profile.CalibrationDwell {
			p.clock.MarkCalibrated()
			p.setState(protocol.PortStateSlave)
		}
	case protocol.PortStateSlave:
		if p.toleranceStreak == 0 {
			p.setState(protocol.PortStateUncalibrated)
		}
	}
}

func (p *Port) fromParent(source protocol.PortIdentity) bool {
	return p.parent != nil && p.parent.Header.SourcePortIdentity == source
}

// EvictStaleSequences drops Sync/Delay-Req sequences that have been open
// too long without completing (spec §4.4).
func (p *Port) EvictStaleSequences(hostNowNS int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	maxSyncAge := p.profile.SyncInterval().Nanoseconds() * int64(p.profile.MaxOutstandingSyncs)
	for k, s := range p.pendingSync {
		if s.Expired(hostNowNS, maxSyncAge) {
			delete(p.pendingSync, k)
		}
	}
	maxDelayReqAge := 2 * p.profile.MinDelayReqInterval().Nanoseconds()
	for k, s := range p.pendingDelayReq {
		if s.Expired(hostNowNS, maxDelayReqAge) {
			delete(p.pendingDelayReq, k)
		}
	}
}

func ptpTimestampToNS(t protocol.Timestamp) int64 {
	return int64(t.Seconds.Seconds())*1e9 + int64(t.Nanoseconds)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
