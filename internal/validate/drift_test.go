package validate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrack/greentrack-go/internal/spatial"
)

func straightWalk(meters float64, n int) []spatial.Point {
	points := make([]spatial.Point, 0, n)
	lat, lon := 46.0, 7.0
	step := meters / float64(n-1)
	for i := 0; i < n; i++ {
		points = append(points, spatial.Point{Lat: lat, Lon: lon})
		lat, lon = spatial.DestinationPoint(lat, lon, 20, step)
	}
	return points
}

func TestCheckDriftPassesRealWalk(t *testing.T) {
	points := straightWalk(450, 30)
	report := CheckDrift(points, 450)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Reasons)
	assert.InDelta(t, 450, report.MaxDistFromStartM, 10)
}

// GPS jitter: 20 fixes inside a 10m radius claiming 600m of accumulated
// distance must fail the radius-of-gyration check.
func TestCheckDriftFailsJitterCluster(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([]spatial.Point, 20)
	for i := range points {
		bearing := rng.Float64() * 360
		dist := rng.Float64() * 10
		lat, lon := spatial.DestinationPoint(46.0, 7.0, bearing, dist)
		points[i] = spatial.Point{Lat: lat, Lon: lon}
	}

	report := CheckDrift(points, 600)
	require.False(t, report.Passed)
	assert.Less(t, report.GyrationM, 25.0)
	// Cluster trips trip several checks; all reasons are collected.
	assert.GreaterOrEqual(t, len(report.Reasons), 2)
}

func TestCheckDriftFailsNarrowBoundingBox(t *testing.T) {
	// Points pacing back and forth along a 60m corridor, claiming 500m.
	points := make([]spatial.Point, 0, 24)
	for i := 0; i < 24; i++ {
		offset := float64(i%4) * 20 // 0..60m
		lat, lon := spatial.DestinationPoint(46.0, 7.0, 90, offset)
		points = append(points, spatial.Point{Lat: lat, Lon: lon})
	}

	report := CheckDrift(points, 500)
	require.False(t, report.Passed)

	found := false
	for _, r := range report.Reasons {
		if len(r) > 0 && r[0] == 'c' { // "claimed ..."
			found = true
		}
	}
	assert.True(t, found, "expected a bounding-box or gyration reason, got %v", report.Reasons)
}

func TestCheckDriftTooFewPoints(t *testing.T) {
	report := CheckDrift([]spatial.Point{{Lat: 46, Lon: 7}}, 0)
	assert.False(t, report.Passed)
}

func TestMinSyncDistance(t *testing.T) {
	assert.Equal(t, 400.0, MinSyncDistanceM("walk"))
	assert.Equal(t, 1000.0, MinSyncDistanceM("cycle"))
}
