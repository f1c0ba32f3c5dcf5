package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

func ptr(v float64) *float64 { return &v }

func fixAt(lat, lon float64, ts int64) models.Fix {
	return models.Fix{
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: ptr(10),
		SpeedMps:       ptr(1.5),
		Timestamp:      ts,
	}
}

func TestAccuracyGateRelaxedWhenIdle(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()

	fix := fixAt(46.0, 7.0, 1000)
	fix.AccuracyMeters = ptr(40) // between the active and idle limits

	outIdle := f.Process(s, fix, false)
	assert.NotEqual(t, DecisionDrop, outIdle.Decision)

	s2 := NewSession()
	s2.stabilized = true
	outActive := f.Process(s2, fix, true)
	assert.Equal(t, DecisionDrop, outActive.Decision)
	assert.Equal(t, ReasonLowAccuracy, outActive.Reason)
}

func TestStabilizationAfterTwoAccurateFixes(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()

	out1 := f.Process(s, fixAt(46.0, 7.0, 1000), false)
	assert.Equal(t, DecisionBuffer, out1.Decision)
	assert.False(t, s.Stabilized())

	out2 := f.Process(s, fixAt(46.00001, 7.00001, 2000), false)
	assert.Equal(t, DecisionAccept, out2.Decision)
	assert.True(t, out2.Stabilized)
	assert.True(t, s.Stabilized())
	assert.Len(t, s.Buffer(), 2)
}

func TestStabilizationTimeoutFallsBackToBestFix(t *testing.T) {
	cfg := DefaultThresholds
	f := NewFilter(cfg)
	s := NewSession()

	first := fixAt(46.0, 7.0, 1000)
	first.AccuracyMeters = ptr(30)
	out1 := f.Process(s, first, false)
	require.Equal(t, DecisionBuffer, out1.Decision)

	// 16 seconds later, still only one more fix: timeout path
	late := fixAt(46.0001, 7.0001, 17000)
	late.AccuracyMeters = ptr(45)
	out2 := f.Process(s, late, false)
	assert.Equal(t, DecisionAccept, out2.Decision)
	assert.True(t, out2.Stabilized)

	start, ok := s.StartPoint()
	require.True(t, ok)
	assert.Equal(t, 30.0, *start.AccuracyMeters) // most accurate buffered fix wins
}

func TestOutlierRejectionLeavesStateUnchanged(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()
	s.stabilized = true

	base := fixAt(46.0, 7.0, 1000)
	s.MarkStored(base)

	// 400m in 5 seconds implies 80 m/s, beyond the physical ceiling
	farLat, farLon := spatial.DestinationPoint(46.0, 7.0, 0, 400)
	jump := fixAt(farLat, farLon, 6000)
	out := f.Process(s, jump, true)

	assert.Equal(t, DecisionDrop, out.Decision)
	assert.Equal(t, ReasonImpliedSpeed, out.Reason)
	// Last stored point must not advance on rejection.
	assert.Equal(t, base.Timestamp, s.LastStored().Timestamp)
}

func TestOutlierAllowsPhysicalSpeeds(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()
	s.stabilized = true

	base := fixAt(46.0, 7.0, 1000)
	s.MarkStored(base)

	// 40m in 5s = 8 m/s, a fast cyclist
	lat, lon := spatial.DestinationPoint(46.0, 7.0, 0, 40)
	out := f.Process(s, fixAt(lat, lon, 6000), true)
	assert.Equal(t, DecisionAccept, out.Decision)
}

func TestSpeedFallbackDerivesFromRawFixes(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()
	s.stabilized = true

	first := fixAt(46.0, 7.0, 1000)
	first.SpeedMps = nil
	f.Process(s, first, true)

	// 15m in 10s with no reported speed: derived 1.5 m/s
	lat, lon := spatial.DestinationPoint(46.0, 7.0, 0, 15)
	second := models.Fix{
		Latitude:       lat,
		Longitude:      lon,
		AccuracyMeters: ptr(10),
		SpeedMps:       nil,
		Timestamp:      11000,
	}
	out := f.Process(s, second, true)
	require.Equal(t, DecisionAccept, out.Decision)
	assert.InDelta(t, 1.5, out.SpeedMps, 0.05)
}

func TestSpeedFallbackIgnoresStaleGaps(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()
	s.stabilized = true

	first := fixAt(46.0, 7.0, 1000)
	first.SpeedMps = nil
	f.Process(s, first, true)

	// 45 second gap: too stale to derive a speed from
	lat, lon := spatial.DestinationPoint(46.0, 7.0, 0, 60)
	second := models.Fix{Latitude: lat, Longitude: lon, AccuracyMeters: ptr(10), Timestamp: 46000}
	out := f.Process(s, second, true)
	require.Equal(t, DecisionAccept, out.Decision)
	assert.Equal(t, 0.0, out.SpeedMps)
}

func TestNegativeReportedSpeedUsesFallback(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()
	s.stabilized = true

	first := fixAt(46.0, 7.0, 1000)
	f.Process(s, first, true)

	lat, lon := spatial.DestinationPoint(46.0, 7.0, 0, 20)
	second := fixAt(lat, lon, 11000)
	second.SpeedMps = ptr(-1)
	out := f.Process(s, second, true)
	require.Equal(t, DecisionAccept, out.Decision)
	assert.InDelta(t, 2.0, out.SpeedMps, 0.05)
}

func TestSessionResetClearsEverything(t *testing.T) {
	f := NewFilter(DefaultThresholds)
	s := NewSession()

	f.Process(s, fixAt(46.0, 7.0, 1000), false)
	f.Process(s, fixAt(46.0001, 7.0001, 2000), false)
	s.MarkStored(fixAt(46.0001, 7.0001, 2000))
	s.StationarySince = 2000

	s.Reset()
	assert.False(t, s.Stabilized())
	assert.Empty(t, s.Buffer())
	assert.Nil(t, s.LastStored())
	assert.Zero(t, s.StationarySince)
}
