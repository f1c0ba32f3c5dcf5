// Package validate decides whether a recorded trip can be trusted or is GPS
// drift masquerading as movement.
package validate

import (
	"fmt"
	"math"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// DriftThresholds defines the geometric drift checks
type DriftThresholds struct {
	MinMaxDistFromStartM float64 // trip must leave its start point
	JitterRadiusM        float64 // circular/jitter pattern radius
	JitterMaxDisplRatio  float64 // net displacement / claimed distance
	BBoxMinDistanceM     float64 // claimed distance that demands a real bbox
	BBoxMinDimensionM    float64 // larger bbox dimension below this fails
	GyrationMinDistanceM float64 // claimed distance that demands real spread
	MinGyrationM         float64 // radius of gyration below this fails
}

// DefaultDriftThresholds provides default drift-check thresholds
var DefaultDriftThresholds = DriftThresholds{
	MinMaxDistFromStartM: 150.0,
	JitterRadiusM:        200.0,
	JitterMaxDisplRatio:  0.10,
	BBoxMinDistanceM:     400.0,
	BBoxMinDimensionM:    80.0,
	GyrationMinDistanceM: 300.0,
	MinGyrationM:         25.0,
}

// Per-type minimum distances (meters) a trip must cover before it is worth
// uploading.
const (
	MinSyncDistanceWalkM  = 400.0
	MinSyncDistanceCycleM = 1000.0
)

// Report is the outcome of the drift checks. All failed checks are collected
// so the cancellation note can explain every reason at once.
type Report struct {
	Passed  bool
	Reasons []string

	MaxDistFromStartM float64
	NetDisplacementM  float64
	DisplacementRatio float64
	BBoxWidthM        float64
	BBoxHeightM       float64
	GyrationM         float64
}

// CheckDrift runs the geometric drift checks over an ordered coordinate
// sequence and the trip's claimed total distance.
func CheckDrift(coords []spatial.Point, claimedDistanceM float64) Report {
	return CheckDriftWith(coords, claimedDistanceM, DefaultDriftThresholds)
}

// CheckDriftWith is CheckDrift with explicit thresholds.
func CheckDriftWith(coords []spatial.Point, claimedDistanceM float64, th DriftThresholds) Report {
	report := Report{}
	if len(coords) < 2 {
		report.Reasons = append(report.Reasons, "not enough GPS points to verify movement")
		return report
	}

	start := coords[0]
	report.MaxDistFromStartM = spatial.MaxDistanceFrom(start, coords)
	report.NetDisplacementM = spatial.NetDisplacement(coords)
	if claimedDistanceM > 0 {
		report.DisplacementRatio = report.NetDisplacementM / claimedDistanceM
	}
	report.BBoxWidthM, report.BBoxHeightM = spatial.BoundingBoxDimensions(coords)
	report.GyrationM = spatial.RadiusOfGyration(coords)

	// Primary check: the trip never really left its start point.
	if report.MaxDistFromStartM < th.MinMaxDistFromStartM {
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("never moved more than %.0fm from start (minimum %.0fm)",
				report.MaxDistFromStartM, th.MinMaxDistFromStartM))
	}

	// Circular/jitter pattern: stayed near the start with almost no net
	// displacement despite the claimed distance.
	if report.MaxDistFromStartM < th.JitterRadiusM && report.DisplacementRatio < th.JitterMaxDisplRatio {
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("circular GPS pattern: stayed within %.0fm of start with %.0f%% net displacement",
				th.JitterRadiusM, report.DisplacementRatio*100))
	}

	// A real 400m+ trip cannot fit in an 80m box.
	larger := math.Max(report.BBoxWidthM, report.BBoxHeightM)
	if claimedDistanceM > th.BBoxMinDistanceM && larger < th.BBoxMinDimensionM {
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("claimed %.0fm but all points fit in a %.0fm box", claimedDistanceM, larger))
	}

	// Radius of gyration: claimed distance with no spatial spread is jitter
	// accumulating around one spot.
	if claimedDistanceM > th.GyrationMinDistanceM && report.GyrationM < th.MinGyrationM {
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("claimed %.0fm but points spread only %.0fm around their center", claimedDistanceM, report.GyrationM))
	}

	report.Passed = len(report.Reasons) == 0
	return report
}

// MinSyncDistanceM returns the minimum distance a trip of the given type must
// cover to be eligible for upload.
func MinSyncDistanceM(tripType string) float64 {
	switch tripType {
	case models.TripTypeCycle:
		return MinSyncDistanceCycleM
	default:
		return MinSyncDistanceWalkM
	}
}
