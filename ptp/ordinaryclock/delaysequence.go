package ordinaryclock

import "fmt"

// delayState enumerates the per-measurement state machine of spec §3,
// "Request-response delay sequence".
type delayState uint8

const (
	awaitingFollowUp delayState = iota
	readyToBeScheduled
	delayReqSendScheduled
	awaitingDelayResp
	delayRespReceived
)

// DelaySequence tracks one outstanding Sync→Delay-Resp measurement. All
// four timestamps are nanoseconds on their own clock's local basis — t1/t4
// on the master's, t2/t3 on the slave's — exactly as the one-way-delay
// formula expects (spec §3/§4.4).
type DelaySequence struct {
	state   delayState
	t1, t2, t3, t4 int64
	createdAtNS    int64 // host ns this sequence was opened, for eviction
}

// NewTwoStepSequence opens a sequence for a two-step Sync: t1 is not yet
// known and arrives later via OnFollowUp.
func NewTwoStepSequence(t2NS, nowNS int64) *DelaySequence {
	return &DelaySequence{state: awaitingFollowUp, t2: t2NS, createdAtNS: nowNS}
}

// NewOneStepSequence opens a sequence for a one-step Sync, which carries
// its own origin timestamp, so the sequence is immediately schedulable.
func NewOneStepSequence(t1NS, t2NS, nowNS int64) *DelaySequence {
	return &DelaySequence{state: readyToBeScheduled, t1: t1NS, t2: t2NS, createdAtNS: nowNS}
}

// OnFollowUp supplies the precise origin timestamp for a two-step Sync.
// Duplicate Follow-Ups are tolerated; the latest one wins (spec §4.4,
// "Duplicate Follow-Ups for the same key are tolerated (last wins)").
func (d *DelaySequence) OnFollowUp(t1NS int64) error {
	if d.state != awaitingFollowUp && d.state != readyToBeScheduled {
		return fmt.Errorf("ordinaryclock: Follow-Up received out of order, state=%d", d.state)
	}
	d.t1 = t1NS
	d.state = readyToBeScheduled
	return nil
}

// ReadyToSchedule reports whether the sequence has both t1 and t2 and is
// waiting for the engine to schedule a Delay-Req.
func (d *DelaySequence) ReadyToSchedule() bool { return d.state == readyToBeScheduled }

// MarkScheduled advances the sequence once the engine has decided to issue
// a Delay-Req for it.
func (d *DelaySequence) MarkScheduled() {
	if d.state == readyToBeScheduled {
		d.state = delayReqSendScheduled
	}
}

// OnDelayReqSent records t3 once the Delay-Req actually goes out.
func (d *DelaySequence) OnDelayReqSent(t3NS int64) error {
	if d.state != delayReqSendScheduled {
		return fmt.Errorf("ordinaryclock: Delay-Req sent out of order, state=%d", d.state)
	}
	d.t3 = t3NS
	d.state = awaitingDelayResp
	return nil
}

// OnDelayResp completes the sequence, returning the mean path delay and
// offset from master (spec §4.4):
//
//	delay  = ((t2-t1) + (t4-t3)) / 2
//	offset = (t2-t1) - delay
func (d *DelaySequence) OnDelayResp(t4NS int64) (offsetNS, delayNS float64, err error) {
	if d.state != awaitingDelayResp {
		return 0, 0, fmt.Errorf("ordinaryclock: Delay-Resp received out of order, state=%d", d.state)
	}
	d.t4 = t4NS
	d.state = delayRespReceived
	delayNS = (float64(d.t2-d.t1) + float64(d.t4-d.t3)) / 2
	offsetNS = float64(d.t2-d.t1) - delayNS
	return offsetNS, delayNS, nil
}

// Done reports whether the sequence has completed (successfully or not)
// and can be removed from any tracking table.
func (d *DelaySequence) Done() bool { return d.state == delayRespReceived }

// Expired reports whether the sequence has been open longer than maxAgeNS
// without completing (spec §4.4: Sync sequences older than
// max_outstanding·sync_interval are evicted; Delay-Req sequences awaiting
// a response older than 2·delay_req_interval are evicted).
func (d *DelaySequence) Expired(nowNS, maxAgeNS int64) bool {
	return !d.Done() && nowNS-d.createdAtNS > maxAgeNS
}
