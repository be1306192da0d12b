package localclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFakeHostClock(t *testing.T, start int64) func(advanceNS int64) {
	t.Helper()
	now := start
	orig := NowHost
	NowHost = func() int64 { return now }
	t.Cleanup(func() { NowHost = orig })
	return func(advanceNS int64) { now += advanceNS }
}

func TestAdjustZeroOffsetYieldsUnityRatio(t *testing.T) {
	withFakeHostClock(t, 0)
	c := New()
	c.Adjust(0)
	assert.Equal(t, 1.0, c.FrequencyRatio)
}

func TestLockAfterTenAdjustments(t *testing.T) {
	withFakeHostClock(t, 0)
	c := New()
	assert.False(t, c.IsLocked())
	for i := 0; i < 10; i++ {
		c.Adjust(0)
	}
	assert.True(t, c.IsLocked())
	assert.Equal(t, 1.0, c.FrequencyRatio)
}

func TestStepResetsLockAndCalibration(t *testing.T) {
	withFakeHostClock(t, 0)
	c := New()
	for i := 0; i < 10; i++ {
		c.Adjust(0)
	}
	c.MarkCalibrated()
	require.True(t, c.IsCalibrated())

	c.Step(1e-3)
	assert.False(t, c.IsLocked())
	assert.False(t, c.IsCalibrated())
	assert.Equal(t, 1.0, c.FrequencyRatio)
	assert.Equal(t, uint64(0), c.AdjustmentsSinceStep)
}

func TestAdjustAccumulatesShift(t *testing.T) {
	withFakeHostClock(t, 0)
	c := New()
	for i := 0; i < 10; i++ {
		c.Adjust(-50_000 / 1e9) // -50us offset each time, expressed in seconds
	}
	// shift accumulates -offset each time: 10 * 50_000ns = 500_000ns = 5e-4s
	assert.InDelta(t, 5e-4, c.ShiftS, 1e-9)
}

func TestFrequencyRatioClamped(t *testing.T) {
	withFakeHostClock(t, 0)
	c := New()
	c.Adjust(-10) // a huge offset should clamp the ratio
	assert.LessOrEqual(t, c.FrequencyRatio, 1.5)
	assert.GreaterOrEqual(t, c.FrequencyRatio, 0.5)
}

func TestAdjustedUsesElapsedHostTime(t *testing.T) {
	advance := withFakeHostClock(t, 0)
	c := New()
	c.LastSyncHostNS = 0
	c.ShiftS = 0
	c.FrequencyRatio = 1
	advance(1_000_000_000) // 1 second
	got := c.Adjusted(NowHost())
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestSnapshotterRoundTrip(t *testing.T) {
	s := NewSnapshotter(New())
	c := New()
	c.ShiftS = 42
	s.Store(c)
	got := s.Load()
	assert.Equal(t, 42.0, got.ShiftS)
}
