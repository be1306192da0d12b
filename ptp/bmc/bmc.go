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

// Package bmc implements the Best Master Clock Algorithm's dataset
// comparison (IEEE 1588-2019 §9.3.4), the core decision of which foreign
// master (if any) a port should adopt as its parent.
package bmc

import (
	"github.com/soundondigital/aes67rx/ptp/protocol"
)

// Result is the outcome of comparing two ComparisonDataSets, A against B.
type Result int8

const (
	Worse Result = iota
	WorseByTopology
	Error1
	Error2
	BetterByTopology
	Better
)

var resultNames = map[Result]string{
	Worse:            "worse",
	WorseByTopology:  "worse_by_topology",
	Error1:           "error1",
	Error2:           "error2",
	BetterByTopology: "better_by_topology",
	Better:           "better",
}

func (r Result) String() string { return resultNames[r] }

// ComparisonDataSet is the subset of an Announce (or the local default
// data set) the comparison algorithm consumes, plus the identity of the
// port that received it (needed to detect a looped-back advertisement).
type ComparisonDataSet struct {
	GrandmasterPriority1    uint8
	GrandmasterIdentity     protocol.ClockIdentity
	GrandmasterClockQuality protocol.ClockQuality
	GrandmasterPriority2    uint8
	StepsRemoved            uint16
	IdentityOfSenders       protocol.ClockIdentity
	IdentityOfReceiver      protocol.PortIdentity
}

// FromAnnounce builds a ComparisonDataSet from a received Announce and the
// identity of the local port that received it.
func FromAnnounce(a *protocol.Announce, receiver protocol.PortIdentity) ComparisonDataSet {
	return ComparisonDataSet{
		GrandmasterPriority1:    a.GrandmasterPriority1,
		GrandmasterIdentity:     a.GrandmasterIdentity,
		GrandmasterClockQuality: a.GrandmasterClockQuality,
		GrandmasterPriority2:    a.GrandmasterPriority2,
		StepsRemoved:            a.StepsRemoved,
		IdentityOfSenders:       a.Header.SourcePortIdentity.ClockIdentity,
		IdentityOfReceiver:      receiver,
	}
}

// FromLocalClock builds the ComparisonDataSet representing the local
// clock's own advertisement of itself (steps removed 0, as if it were its
// own grandmaster) — used when the local clock is itself a BMCA candidate.
func FromLocalClock(identity protocol.ClockIdentity, priority1, priority2 uint8, quality protocol.ClockQuality) ComparisonDataSet {
	return ComparisonDataSet{
		GrandmasterPriority1:    priority1,
		GrandmasterIdentity:     identity,
		GrandmasterClockQuality: quality,
		GrandmasterPriority2:    priority2,
		StepsRemoved:            0,
		IdentityOfSenders:       identity,
		IdentityOfReceiver:      protocol.PortIdentity{ClockIdentity: identity, PortNumber: 0},
	}
}

// Compare implements the tie-break chain of spec §4.4 / IEEE 1588-2019
// §9.3.4: Figure 27 (same grandmaster, topology comparison) and Figure 28
// (different grandmaster, data set comparison).
func (a ComparisonDataSet) Compare(b ComparisonDataSet) Result {
	if a.GrandmasterIdentity == b.GrandmasterIdentity {
		return a.compareTopology(b)
	}
	return a.compareDataSet(b)
}

func (a ComparisonDataSet) compareTopology(b ComparisonDataSet) Result {
	if a.StepsRemoved > b.StepsRemoved+1 {
		return Worse
	}
	if a.StepsRemoved+1 < b.StepsRemoved {
		return Better
	}

	if a.StepsRemoved > b.StepsRemoved {
		switch {
		case a.IdentityOfReceiver.ClockIdentity < a.IdentityOfSenders:
			return Worse
		case a.IdentityOfReceiver.ClockIdentity > a.IdentityOfSenders:
			return WorseByTopology
		default:
			return Error1
		}
	}

	if a.StepsRemoved < b.StepsRemoved {
		switch {
		case b.IdentityOfReceiver.ClockIdentity < b.IdentityOfSenders:
			return Better
		case b.IdentityOfReceiver.ClockIdentity > b.IdentityOfSenders:
			return BetterByTopology
		default:
			return Error1
		}
	}

	// steps_removed equal: compare identity of senders, then receiver port number.
	switch {
	case a.IdentityOfSenders > b.IdentityOfSenders:
		return WorseByTopology
	case a.IdentityOfSenders < b.IdentityOfSenders:
		return BetterByTopology
	}

	switch {
	case a.IdentityOfReceiver.PortNumber > b.IdentityOfReceiver.PortNumber:
		return WorseByTopology
	case a.IdentityOfReceiver.PortNumber < b.IdentityOfReceiver.PortNumber:
		return BetterByTopology
	}

	return Error2
}

func (a ComparisonDataSet) compareDataSet(b ComparisonDataSet) Result {
	if a.GrandmasterPriority1 != b.GrandmasterPriority1 {
		if a.GrandmasterPriority1 < b.GrandmasterPriority1 {
			return Better
		}
		return Worse
	}

	qa, qb := a.GrandmasterClockQuality, b.GrandmasterClockQuality
	if qa.ClockClass != qb.ClockClass {
		if qa.ClockClass < qb.ClockClass {
			return Better
		}
		return Worse
	}
	if qa.ClockAccuracy != qb.ClockAccuracy {
		if qa.ClockAccuracy < qb.ClockAccuracy {
			return Better
		}
		return Worse
	}
	if qa.OffsetScaledLogVariance != qb.OffsetScaledLogVariance {
		if qa.OffsetScaledLogVariance < qb.OffsetScaledLogVariance {
			return Better
		}
		return Worse
	}
	if a.GrandmasterPriority2 != b.GrandmasterPriority2 {
		if a.GrandmasterPriority2 < b.GrandmasterPriority2 {
			return Better
		}
		return Worse
	}

	// Final tie-break on grandmaster identity (IEEE 1588-2019 §7.5.2.4):
	// this is the one step where the greater value wins, not the lesser.
	if a.GrandmasterIdentity != b.GrandmasterIdentity {
		if a.GrandmasterIdentity > b.GrandmasterIdentity {
			return Better
		}
		return Worse
	}

	return Error1
}
