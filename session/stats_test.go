package session

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRegistersAllCollectors(t *testing.T) {
	s := NewStats()
	require.NotNil(t, s.registry)

	s.offsetNS.Set(42)
	s.desyncTotal.Set(3)
	assert.Equal(t, float64(42), testutil.ToFloat64(s.offsetNS))
	assert.Equal(t, float64(3), testutil.ToFloat64(s.desyncTotal))
}

func TestStatsSignalGaugesHoldLastSetValue(t *testing.T) {
	s := NewStats()
	s.rmsDB.Set(-10)
	s.peakDB.Set(-7)
	assert.Equal(t, float64(-10), testutil.ToFloat64(s.rmsDB))
	assert.Equal(t, float64(-7), testutil.ToFloat64(s.peakDB))
}
