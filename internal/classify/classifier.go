// Package classify turns speed readings and path shape into activity labels.
// All functions are pure: they take immutable inputs and return a verdict.
package classify

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// Speed band boundaries (km/h). The 7-30 band subsumes running: sustained
// human speeds above walking pace without a vehicle read as cycling.
const (
	StationaryMaxKmh = 2.0
	WalkingMaxKmh    = 7.0
	CyclingMaxKmh    = 30.0

	// Confidence tuning
	walkingFloor   = 65.0
	cyclingFloor   = 70.0
	bandPeak       = 95.0
	stationaryHigh = 95 // below 0.5 km/h
	stationaryLow  = 85
	drivingHigh    = 95 // above 40 km/h
	drivingLow     = 85
)

// Transit detection thresholds. This is the single canonical transit policy;
// every call site votes with the same numbers.
const (
	transitMedianMinKmh       = 8.0
	transitMedianMaxKmh       = 20.0
	transitMaxIQR             = 3.0
	transitMaxStdDev          = 2.0
	transitMinHighRatio       = 0.7
	highSpeedFloorKmh         = 7.0
	sinuosityVehicleMax       = 1.15
	bearingChangesPerKmMax    = 3.0
	bearingChangeThresholdDeg = 30.0
)

// Result is a classified activity with a confidence score in [0,100].
type Result struct {
	Type       string
	Confidence int
}

// BySpeed classifies a single speed reading (m/s) into an activity band.
// Confidence peaks at the middle of a band and decays linearly toward its
// edges, floored per band.
func BySpeed(speedMps float64) Result {
	kmh := speedMps * 3.6
	if kmh < 0 {
		kmh = 0
	}

	switch {
	case kmh < StationaryMaxKmh:
		if kmh < 0.5 {
			return Result{Type: models.ActivityStationary, Confidence: stationaryHigh}
		}
		return Result{Type: models.ActivityStationary, Confidence: stationaryLow}
	case kmh < WalkingMaxKmh:
		return Result{Type: models.ActivityWalking, Confidence: bandConfidence(kmh, StationaryMaxKmh, WalkingMaxKmh, walkingFloor)}
	case kmh < CyclingMaxKmh:
		return Result{Type: models.ActivityCycling, Confidence: bandConfidence(kmh, WalkingMaxKmh, CyclingMaxKmh, cyclingFloor)}
	default:
		if kmh > 40 {
			return Result{Type: models.ActivityDriving, Confidence: drivingHigh}
		}
		return Result{Type: models.ActivityDriving, Confidence: drivingLow}
	}
}

// bandConfidence ramps linearly from floor at the band edges to bandPeak at
// the band midpoint.
func bandConfidence(kmh, lo, hi, floor float64) int {
	mid := (lo + hi) / 2
	halfWidth := (hi - lo) / 2
	offset := math.Abs(kmh-mid) / halfWidth // 0 at midpoint, 1 at edge
	conf := bandPeak - (bandPeak-floor)*offset
	return int(math.Round(conf))
}

// ByMovingAverage classifies on the mean of the last window readings (m/s).
// A steady window (stddev < 2 km/h) boosts confidence by 10, capped at 95.
func ByMovingAverage(speedsMps []float64, window int) Result {
	if len(speedsMps) == 0 {
		return Result{Type: models.ActivityStationary, Confidence: stationaryHigh}
	}
	w := lastWindowKmh(speedsMps, window)

	result := BySpeed(stat.Mean(w, nil) / 3.6)
	if len(w) >= 2 && stat.StdDev(w, nil) < 2.0 {
		result.Confidence = min(result.Confidence+10, 95)
	}
	return result
}

// SpeedStats summarizes the distribution of a window of speed readings, in km/h.
type SpeedStats struct {
	Median         float64
	Mean           float64
	P25            float64
	P75            float64
	IQR            float64
	StdDev         float64
	HighSpeedRatio float64 // fraction of readings >= 7 km/h
}

// Stats computes distribution statistics over the last window readings (m/s).
func Stats(speedsMps []float64, window int) SpeedStats {
	w := lastWindowKmh(speedsMps, window)
	if len(w) == 0 {
		return SpeedStats{}
	}

	sorted := append([]float64(nil), w...)
	sort.Float64s(sorted)

	s := SpeedStats{
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Mean:   stat.Mean(sorted, nil),
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	s.IQR = s.P75 - s.P25
	if len(sorted) >= 2 {
		s.StdDev = stat.StdDev(sorted, nil)
	}

	high := 0
	for _, v := range sorted {
		if v >= highSpeedFloorKmh {
			high++
		}
	}
	s.HighSpeedRatio = float64(high) / float64(len(sorted))

	return s
}

// BySpeedDistribution classifies on the median of the window, which is robust
// to single-fix speed spikes. A wide spread (IQR > 5 km/h) costs 10
// confidence; a tight one (IQR < 2 and variance < 2) gains 10.
func BySpeedDistribution(speedsMps []float64, window int) Result {
	if len(speedsMps) == 0 {
		return Result{Type: models.ActivityStationary, Confidence: stationaryHigh}
	}

	s := Stats(speedsMps, window)
	result := BySpeed(s.Median / 3.6)

	if s.IQR > 5 {
		result.Confidence = max(result.Confidence-10, 0)
	} else if s.IQR < 2 && s.StdDev*s.StdDev < 2 {
		result.Confidence = min(result.Confidence+10, 95)
	}

	return result
}

// PossibleTransit flags speed distributions that look like train or bus
// travel: a sustained 8-20 km/h median with unnaturally low variance. Humans
// cannot hold a speed that steadily. At least 2 of the 3 indicators must hold.
func PossibleTransit(s SpeedStats) bool {
	votes := 0
	if s.Median >= transitMedianMinKmh && s.Median <= transitMedianMaxKmh {
		votes++
	}
	if s.IQR < transitMaxIQR && s.StdDev < transitMaxStdDev {
		votes++
	}
	if s.HighSpeedRatio > transitMinHighRatio {
		votes++
	}
	return votes >= 2
}

// WithPatterns refines a distribution verdict with path-shape evidence.
// When a human-speed verdict is backed by a weighted indicator score of 4 or
// more (straight rail-like path and few direction changes weigh double), the
// verdict is overridden to driving.
func WithPatterns(speedsMps []float64, locations []spatial.Point) Result {
	result := BySpeedDistribution(speedsMps, len(speedsMps))
	if result.Type != models.ActivityCycling {
		// Only the 7-30 km/h band can hide vehicle travel.
		return result
	}

	s := Stats(speedsMps, len(speedsMps))

	score := 0
	if s.Median >= transitMedianMinKmh && s.Median <= transitMedianMaxKmh {
		score++
	}
	if len(locations) >= 3 && spatial.Sinuosity(locations) < sinuosityVehicleMax {
		score += 2
	}
	if len(locations) >= 3 && spatial.BearingChangesPerKm(locations, bearingChangeThresholdDeg) < bearingChangesPerKmMax {
		score += 2
	}
	if s.HighSpeedRatio > transitMinHighRatio {
		score++
	}
	if s.IQR < transitMaxIQR {
		score++
	}

	if score >= 4 {
		return Result{Type: models.ActivityDriving, Confidence: result.Confidence}
	}
	return result
}

func lastWindowKmh(speedsMps []float64, window int) []float64 {
	if window <= 0 || window > len(speedsMps) {
		window = len(speedsMps)
	}
	tail := speedsMps[len(speedsMps)-window:]
	out := make([]float64, len(tail))
	for i, v := range tail {
		out[i] = v * 3.6
	}
	return out
}
