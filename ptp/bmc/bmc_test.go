package bmc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundondigital/aes67rx/ptp/protocol"
)

func baseSet() ComparisonDataSet {
	return ComparisonDataSet{
		GrandmasterPriority1: 128,
		GrandmasterIdentity:  0x0123456789abcdef,
		GrandmasterClockQuality: protocol.ClockQuality{
			ClockClass:              0x12,
			ClockAccuracy:           protocol.ClockAccuracyNanosecond25,
			OffsetScaledLogVariance: 0x1234,
		},
		GrandmasterPriority2: 128,
		StepsRemoved:         10,
		IdentityOfSenders:    0x0123456789abcdef,
		IdentityOfReceiver:   protocol.PortIdentity{ClockIdentity: 0x0123456789abcdef, PortNumber: 2},
	}
}

func TestCompareStepsRemovedStrictlyBetterWorse(t *testing.T) {
	a, b := baseSet(), baseSet()
	a.StepsRemoved -= 2
	assert.Equal(t, Better, a.Compare(b))

	a, b = baseSet(), baseSet()
	a.StepsRemoved += 2
	assert.Equal(t, Worse, a.Compare(b))
}

func TestCompareStepsRemovedOffByOneUsesTopology(t *testing.T) {
	a, b := baseSet(), baseSet()
	a.StepsRemoved--
	b.IdentityOfReceiver.ClockIdentity = 0x0023456789abcdef // receiver < sender
	assert.Equal(t, Better, a.Compare(b))

	a, b = baseSet(), baseSet()
	a.StepsRemoved--
	b.IdentityOfReceiver.ClockIdentity = 0x0223456789abcdef // receiver > sender
	assert.Equal(t, BetterByTopology, a.Compare(b))
}

func TestCompareEqualStepsRemovedBySenderIdentity(t *testing.T) {
	a, b := baseSet(), baseSet()
	a.IdentityOfSenders = 0x0023456789abcdef
	b.IdentityOfSenders = 0x0123456789abcdef
	assert.Equal(t, BetterByTopology, a.Compare(b))
	assert.Equal(t, WorseByTopology, b.Compare(a))
}

func TestCompareEqualStepsRemovedAndSenderByReceiverPort(t *testing.T) {
	a, b := baseSet(), baseSet()
	a.IdentityOfReceiver.PortNumber = 1
	b.IdentityOfReceiver.PortNumber = 2
	assert.Equal(t, BetterByTopology, a.Compare(b))
}

func TestCompareIdenticalSetsIsError2(t *testing.T) {
	a, b := baseSet(), baseSet()
	assert.Equal(t, Error2, a.Compare(b))
}

// TestBMCAScenarioClassDiffers is the spec §8 scenario 2: two candidates
// identical except class=6 vs class=7 must compare "better" for the lower
// class.
func TestBMCAScenarioClassDiffers(t *testing.T) {
	a := ComparisonDataSet{
		GrandmasterPriority1: 128,
		GrandmasterClockQuality: protocol.ClockQuality{
			ClockClass:              6,
			ClockAccuracy:           protocol.ClockAccuracyNanosecond25,
			OffsetScaledLogVariance: 0x8000,
		},
		GrandmasterPriority2: 128,
		GrandmasterIdentity:  0xAAAAAAAAAAAAAAAA,
		IdentityOfSenders:    0xAAAAAAAAAAAAAAAA,
	}
	b := a
	b.GrandmasterClockQuality.ClockClass = 7
	b.GrandmasterIdentity = 0xBBBBBBBBBBBBBBBB
	b.IdentityOfSenders = 0xBBBBBBBBBBBBBBBB

	assert.Equal(t, Better, a.Compare(b))
}

// TestBMCATieBreaksOnIdentityBytes is a boundary behavior from spec §8:
// identical priority/quality fields, different grandmaster_identity, must
// break the tie on identity (strict, not Error1).
func TestBMCATieBreaksOnIdentityBytes(t *testing.T) {
	a := ComparisonDataSet{
		GrandmasterPriority1: 128,
		GrandmasterPriority2: 128,
		GrandmasterIdentity:  0x0000000000000001,
		IdentityOfSenders:    0x0000000000000001,
	}
	b := a
	b.GrandmasterIdentity = 0x0000000000000002
	b.IdentityOfSenders = 0x0000000000000002

	result := a.Compare(b)
	assert.NotEqual(t, Error1, result)
	assert.NotEqual(t, Error2, result)
	// a's identity (1) is less than b's (2); the final tie-break favors
	// the greater identity, so b is Better from a's perspective: a is Worse.
	assert.Equal(t, Worse, result)
	assert.Equal(t, Better, b.Compare(a))
}

func TestCompareIsAntisymmetric(t *testing.T) {
	a, b := baseSet(), baseSet()
	a.StepsRemoved -= 2
	assert.Equal(t, Better, a.Compare(b))
	assert.Equal(t, Worse, b.Compare(a))
}

func TestFromAnnounceAndFromLocalClock(t *testing.T) {
	ann := &protocol.Announce{
		AnnounceBody: protocol.AnnounceBody{
			GrandmasterIdentity:  0x1,
			GrandmasterPriority1: 128,
			GrandmasterPriority2: 128,
		},
	}
	ann.Header.SourcePortIdentity = protocol.PortIdentity{ClockIdentity: 0x1, PortNumber: 1}
	ds := FromAnnounce(ann, protocol.PortIdentity{ClockIdentity: 0x2, PortNumber: 1})
	assert.Equal(t, protocol.ClockIdentity(0x1), ds.GrandmasterIdentity)
	assert.Equal(t, protocol.ClockIdentity(0x1), ds.IdentityOfSenders)

	local := FromLocalClock(0x2, 200, 200, protocol.ClockQuality{ClockClass: protocol.ClockClassDefault})
	assert.Equal(t, uint16(0), local.StepsRemoved)
}
