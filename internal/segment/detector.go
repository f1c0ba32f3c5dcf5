// Package segment splits a finished trip's point sequence into homogeneous
// activity segments, so a walk-cycle-walk outing becomes three trips instead
// of one mislabeled blob.
package segment

import (
	"github.com/greentrack/greentrack-go/internal/classify"
	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// Thresholds defines segmentation tuning
type Thresholds struct {
	LookaheadPoints    int     // window that must confirm a type change
	MinDurationSeconds float64 // shorter segments are dropped
	MinDistanceMeters  float64
	WalkOverrideKmh    float64 // walk segment faster than this is a vehicle
}

// DefaultThresholds provides default segmentation thresholds
var DefaultThresholds = Thresholds{
	LookaheadPoints:    3,
	MinDurationSeconds: 30,
	MinDistanceMeters:  100,
	WalkOverrideKmh:    10,
}

// Result is the outcome of segmenting one trip.
type Result struct {
	Segments     []models.TripSegment
	IsMultiModal bool
	DominantType string  // distance-weighted
	Confidence   float64 // distance-weighted, 0-100
}

// Detect classifies every point, scans for debounced activity boundaries and
// returns the surviving segments. Points must be in timestamp order.
func Detect(points []models.LocationPoint) Result {
	return DetectWith(points, DefaultThresholds)
}

// DetectWith is Detect with explicit thresholds.
func DetectWith(points []models.LocationPoint, th Thresholds) Result {
	if len(points) < 2 {
		return Result{}
	}

	types := make([]string, len(points))
	confidences := make([]int, len(points))
	for i, p := range points {
		c := classify.BySpeed(p.SpeedMps)
		types[i] = c.Type
		confidences[i] = c.Confidence
	}

	// Scan for boundaries: a type change counts only when most of the
	// lookahead window agrees with the new type. This debounces single-point
	// misclassification.
	var raw []models.TripSegment
	segStart := 0
	current := types[0]
	for i := 1; i < len(points); i++ {
		if types[i] == current {
			continue
		}
		if !confirmed(types, i, th.LookaheadPoints) {
			continue
		}
		raw = append(raw, build(points, confidences, segStart, i-1, current, th))
		segStart = i
		current = types[i]
	}
	raw = append(raw, build(points, confidences, segStart, len(points)-1, current, th))

	// Drop segments too short to mean anything.
	var kept []models.TripSegment
	for _, seg := range raw {
		if seg.DurationSeconds < th.MinDurationSeconds || seg.DistanceMeters < th.MinDistanceMeters {
			continue
		}
		kept = append(kept, seg)
	}

	// Merge adjacent survivors of equal type; dropping a short middle
	// segment can leave equal neighbors behind.
	merged := mergeAdjacent(points, confidences, kept, th)

	return summarize(merged)
}

// confirmed checks that at least ceil(2/3) of the lookahead window starting
// at boundary carries the new type.
func confirmed(types []string, boundary, lookahead int) bool {
	newType := types[boundary]
	window := 0
	matches := 0
	for i := boundary; i < len(types) && window < lookahead; i++ {
		window++
		if types[i] == newType {
			matches++
		}
	}
	need := (2*window + 2) / 3 // ceil(2w/3)
	return matches >= need
}

// build computes the stats of one candidate segment over points[start..end].
func build(points []models.LocationPoint, confidences []int, start, end int, segType string, th Thresholds) models.TripSegment {
	coords := make([]spatial.Point, 0, end-start+1)
	maxSpeed := 0.0
	confSum := 0
	for i := start; i <= end; i++ {
		coords = append(coords, spatial.Point{Lat: points[i].Latitude, Lon: points[i].Longitude})
		if points[i].SpeedMps > maxSpeed {
			maxSpeed = points[i].SpeedMps
		}
		confSum += confidences[i]
	}

	distance := spatial.PathLength(coords)
	duration := float64(points[end].Timestamp-points[start].Timestamp) / 1000.0
	avgKmh := 0.0
	if duration > 0 {
		avgKmh = distance / duration * 3.6
	}

	seg := models.TripSegment{
		StartIndex:      start,
		EndIndex:        end,
		Type:            segType,
		DistanceMeters:  distance,
		DurationSeconds: duration,
		AvgSpeedKmh:     avgKmh,
		MaxSpeedKmh:     maxSpeed * 3.6,
		Confidence:      float64(confSum) / float64(end-start+1),
	}

	// Transit override: a "walk" averaging vehicle speed is a vehicle. GPS
	// undershoots per-point speed in transit, so the average tells the truth.
	if seg.Type == models.ActivityWalking && seg.AvgSpeedKmh > th.WalkOverrideKmh {
		seg.Type = models.ActivityDriving
	}

	return seg
}

// mergeAdjacent joins neighboring segments of the same type, recomputing the
// union's stats and distance-weighting the confidence.
func mergeAdjacent(points []models.LocationPoint, confidences []int, segs []models.TripSegment, th Thresholds) []models.TripSegment {
	if len(segs) < 2 {
		return segs
	}

	merged := []models.TripSegment{segs[0]}
	for _, seg := range segs[1:] {
		last := &merged[len(merged)-1]
		if seg.Type != last.Type {
			merged = append(merged, seg)
			continue
		}

		weighted := 0.0
		total := last.DistanceMeters + seg.DistanceMeters
		if total > 0 {
			weighted = (last.Confidence*last.DistanceMeters + seg.Confidence*seg.DistanceMeters) / total
		} else {
			weighted = (last.Confidence + seg.Confidence) / 2
		}

		union := build(points, confidences, last.StartIndex, seg.EndIndex, last.Type, th)
		union.Confidence = weighted
		*last = union
	}

	return merged
}

// summarize derives the trip-level verdict from the surviving segments.
func summarize(segs []models.TripSegment) Result {
	result := Result{Segments: segs}
	if len(segs) == 0 {
		return result
	}

	distinct := map[string]bool{}
	distanceByType := map[string]float64{}
	totalDistance := 0.0
	weightedConf := 0.0
	for _, seg := range segs {
		distinct[seg.Type] = true
		distanceByType[seg.Type] += seg.DistanceMeters
		totalDistance += seg.DistanceMeters
		weightedConf += seg.Confidence * seg.DistanceMeters
	}

	result.IsMultiModal = len(distinct) > 1

	best := ""
	bestDistance := -1.0
	for segType, dist := range distanceByType {
		if dist > bestDistance {
			best = segType
			bestDistance = dist
		}
	}
	result.DominantType = best

	if totalDistance > 0 {
		result.Confidence = weightedConf / totalDistance
	} else {
		result.Confidence = segs[0].Confidence
	}

	return result
}
