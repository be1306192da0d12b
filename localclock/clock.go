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

// Package localclock disciplines a free-running monotonic host clock onto
// an external grandmaster's timescale (spec §4.3). Clock is plain-old-data
// so it can be published atomically from the PTP engine (writer) to the
// audio callback (reader) via a seqlock-style Snapshotter (spec §9,
// "Trivially-copyable clock").
package localclock

import (
	"math"
	"time"

	"github.com/soundondigital/aes67rx/ptp/protocol"
)

// minAdjustmentsForLock is the number of adjust() calls after which the
// clock is considered locked (spec §4.3, "is_locked() <=> adjustments>=10").
const minAdjustmentsForLock = 10

// frequencyRatioMin and frequencyRatioMax bound the steered frequency
// ratio (spec §4.3).
const (
	frequencyRatioMin = 0.5
	frequencyRatioMax = 1.5
)

// Clock is the monotonic-host-time -> grandmaster-time transform. It is a
// plain struct with no pointers, so copying it is always safe — the
// transform it describes at the moment of copy.
type Clock struct {
	LastSyncHostNS       int64
	ShiftS               float64
	FrequencyRatio       float64
	AdjustmentsSinceStep uint64
	Calibrated           bool
}

// New returns a freshly-initialized, unsteered Clock.
func New() Clock {
	return Clock{FrequencyRatio: 1.0}
}

// NowHost reads the host's wall clock, expressed as nanoseconds since the
// Unix epoch. It is not monotonic: a step of the system clock shows up as a
// jump in host time. It is a var so tests can stub it.
var NowHost = func() int64 { return time.Now().UnixNano() }

// Adjusted returns the grandmaster-timescale PTP time (seconds since the
// PTP epoch, as a float64 for use in the steering math; ptp/protocol
// converts to the wire Timestamp type) corresponding to hostNS.
func (c Clock) Adjusted(hostNS int64) float64 {
	elapsedS := float64(hostNS-c.LastSyncHostNS) / float64(time.Second)
	return float64(c.LastSyncHostNS)/float64(time.Second) + elapsedS*c.FrequencyRatio + c.ShiftS
}

// Now returns Adjusted(hostNS), the grandmaster-timescale instant
// corresponding to hostNS, as a PTP Timestamp, for use in RTP-timestamp
// conversion (spec §4.7 "LocalClock.now().to_rtp_timestamp32(sample_rate)").
// Instants before the epoch are clamped to zero.
func (c Clock) Now(hostNS int64) protocol.Timestamp {
	masterS := c.Adjusted(hostNS)
	if masterS < 0 {
		masterS = 0
	}
	wholeSeconds := uint64(masterS)
	ns := uint32(math.Round((masterS - float64(wholeSeconds)) * 1e9))
	if ns >= 1_000_000_000 {
		wholeSeconds++
		ns -= 1_000_000_000
	}
	return protocol.Timestamp{Seconds: protocol.NewPTPSeconds(wholeSeconds), Nanoseconds: ns}
}

// Adjust steers the clock from a valid Sync/Delay-Resp offset measurement,
// without declaring a hard resynchronization point (spec §4.3). The cubic
// frequency-ratio steering is deliberately kept in this exact fixed form
// (see SPEC_FULL.md Open Question 1); it is not a PI loop.
func (c *Clock) Adjust(offsetFromMasterS float64) {
	c.LastSyncHostNS = NowHost()
	c.ShiftS += -offsetFromMasterS
	ratio := 0.001*cube(-offsetFromMasterS) + 1
	c.FrequencyRatio = clamp(ratio, frequencyRatioMin, frequencyRatioMax)
	c.AdjustmentsSinceStep++
}

// Step performs a gross resynchronization: same shift update as Adjust,
// but resets frequency ratio to unity and drops lock/calibration state.
// The caller (the PTP engine) decides when a step, rather than a smooth
// adjustment, is warranted (e.g. a grandmaster change).
func (c *Clock) Step(offsetFromMasterS float64) {
	c.LastSyncHostNS = NowHost()
	c.ShiftS += -offsetFromMasterS
	c.FrequencyRatio = 1
	c.AdjustmentsSinceStep = 0
	c.Calibrated = false
}

// IsLocked reports whether enough consecutive adjustments have landed
// since the last step to consider the clock's frequency ratio meaningful.
func (c Clock) IsLocked() bool {
	return c.AdjustmentsSinceStep >= minAdjustmentsForLock
}

// IsCalibrated reports whether the clock is locked and has additionally
// been marked calibrated by the PTP engine (the dwell/tolerance band
// check lives in ptp/ordinaryclock, per spec §4.4).
func (c Clock) IsCalibrated() bool {
	return c.IsLocked() && c.Calibrated
}

// MarkCalibrated is called by the PTP engine once the offset has stayed
// within tolerance for the configured dwell.
func (c *Clock) MarkCalibrated() { c.Calibrated = true }

func cube(x float64) float64 { return x * x * x }

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
