package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// track builds a point sequence along one bearing: for each phase, n points
// at the given speed (m/s) on a fixed cadence.
type phase struct {
	n        int
	speedMps float64
}

func track(cadenceSec int, phases ...phase) []models.LocationPoint {
	var points []models.LocationPoint
	lat, lon := 46.0, 7.0
	ts := int64(1_700_000_000_000)
	for _, ph := range phases {
		for i := 0; i < ph.n; i++ {
			points = append(points, models.LocationPoint{
				Latitude:  lat,
				Longitude: lon,
				SpeedMps:  ph.speedMps,
				Timestamp: ts,
			})
			lat, lon = spatial.DestinationPoint(lat, lon, 35, ph.speedMps*float64(cadenceSec))
			ts += int64(cadenceSec) * 1000
		}
	}
	return points
}

// Walk, cycle, walk: the detector must find three segments and flag the trip
// multi-modal with the cycle leg dominant by distance.
func TestDetectWalkCycleWalk(t *testing.T) {
	points := track(5,
		phase{n: 24, speedMps: 1.4}, // 2 min walk, ~165m
		phase{n: 36, speedMps: 5.0}, // 3 min cycle, ~900m
		phase{n: 24, speedMps: 1.4}, // 2 min walk
	)

	result := Detect(points)
	require.Len(t, result.Segments, 3)
	assert.True(t, result.IsMultiModal)

	assert.Equal(t, models.ActivityWalking, result.Segments[0].Type)
	assert.Equal(t, models.ActivityCycling, result.Segments[1].Type)
	assert.Equal(t, models.ActivityWalking, result.Segments[2].Type)

	assert.Equal(t, models.ActivityCycling, result.DominantType)
	assert.Greater(t, result.Segments[1].DistanceMeters, 800.0)
	assert.GreaterOrEqual(t, result.Segments[1].DurationSeconds, 170.0)
	assert.InDelta(t, 18, result.Segments[1].AvgSpeedKmh, 1.0)
}

// A single misclassified point must not split a segment: the lookahead
// window debounces it.
func TestDetectDebouncesSinglePointSpike(t *testing.T) {
	points := track(5, phase{n: 40, speedMps: 1.4})
	points[20].SpeedMps = 6.0 // one spurious cycling-speed fix

	result := Detect(points)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, models.ActivityWalking, result.Segments[0].Type)
	assert.False(t, result.IsMultiModal)
}

func TestDetectDropsShortSegments(t *testing.T) {
	points := track(5,
		phase{n: 40, speedMps: 1.4}, // solid walk
		phase{n: 4, speedMps: 5.0},  // 20s burst: below both minimums
		phase{n: 40, speedMps: 1.4},
	)

	result := Detect(points)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, models.ActivityWalking, result.Segments[0].Type)
	assert.False(t, result.IsMultiModal)
}

// A "walk" segment averaging vehicle speed gets relabeled as driving.
func TestDetectWalkOverrideAtVehicleSpeed(t *testing.T) {
	points := track(5, phase{n: 40, speedMps: 1.5})
	// Stretch the geometry: points actually 20m apart (4 m/s real movement)
	lat, lon := 46.0, 7.0
	for i := range points {
		points[i].Latitude = lat
		points[i].Longitude = lon
		lat, lon = spatial.DestinationPoint(lat, lon, 35, 20)
	}

	result := Detect(points)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, models.ActivityDriving, result.Segments[0].Type)
}

func TestDetectTooFewPoints(t *testing.T) {
	result := Detect(track(5, phase{n: 1, speedMps: 1.4}))
	assert.Empty(t, result.Segments)
}

func TestDetectMergesAfterDrop(t *testing.T) {
	points := track(5,
		phase{n: 30, speedMps: 1.4},
		phase{n: 4, speedMps: 5.0}, // dropped burst leaves two walk neighbors
		phase{n: 30, speedMps: 1.4},
	)

	result := Detect(points)
	require.Len(t, result.Segments, 1)
	seg := result.Segments[0]
	assert.Equal(t, 0, seg.StartIndex)
	assert.Equal(t, len(points)-1, seg.EndIndex)
}
