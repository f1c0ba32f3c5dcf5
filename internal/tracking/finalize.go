package tracking

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/greentrack/greentrack-go/internal/classify"
	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/segment"
	"github.com/greentrack/greentrack-go/internal/spatial"
	"github.com/greentrack/greentrack-go/internal/validate"
)

// finalizeTripLocked runs a finished trip through the gates, segmentation
// and validation, and leaves it in exactly one terminal state. Session state
// is always reset afterwards.
func (s *Service) finalizeTripLocked(trip *models.Trip, endTs int64) {
	defer func() {
		s.active = nil
		s.lastPoint = nil
		s.session.Reset()
	}()

	points, err := s.points.GetLocationsByTrip(trip.ID)
	if err != nil {
		log.Printf("[TrackingService] Failed to load points for trip %s: %v", trip.ID, err)
		s.cancelLocked(trip, endTs, "could not load recorded points", "storage")
		return
	}

	coords := coordsOf(points)
	distance := spatial.PathLength(coords)
	durationMs := endTs - trip.StartTime

	// Minimum gates: a trip with a single stored point can never pass.
	if len(points) < 2 || durationMs < s.cfg.MinTripDurationMs || distance < s.cfg.MinTripDistanceM {
		s.cancelLocked(trip, endTs, fmt.Sprintf(
			"too short: %.0fm in %ds", distance, durationMs/1000), "too_short")
		return
	}

	seg := segment.Detect(points)
	if seg.IsMultiModal && len(seg.Segments) > 1 {
		s.promoteSegmentsLocked(trip, points, seg, endTs)
		return
	}

	s.completeSingleLocked(trip, points, seg, endTs, distance)
}

// completeSingleLocked finishes a homogeneous trip: transit recheck, type
// allow-list, drift validation, then completion.
func (s *Service) completeSingleLocked(trip *models.Trip, points []models.LocationPoint, seg segment.Result, endTs int64, distance float64) {
	coords := coordsOf(points)
	speeds := speedsOf(points)

	dominant := seg.DominantType
	if dominant == "" {
		dominant = majorityActivity(points)
	}

	// Post-hoc transit check: a trip can be a bus ride even when no single
	// point crossed the driving band.
	if classify.PossibleTransit(classify.Stats(speeds, len(speeds))) ||
		classify.WithPatterns(speeds, coords).Type == models.ActivityDriving {
		s.cancelLocked(trip, endTs, "movement pattern matches vehicle transit", "wrong_type")
		return
	}

	tripType, ok := models.TripTypeForActivity(dominant)
	if !ok {
		s.cancelLocked(trip, endTs, fmt.Sprintf("dominant activity %q is not person-powered", dominant), "wrong_type")
		return
	}

	if report := validate.CheckDrift(coords, distance); !report.Passed {
		s.cancelLocked(trip, endTs, "GPS drift: "+strings.Join(report.Reasons, "; "), "drift")
		return
	}

	stats := tripStats(points, trip.StartTime, endTs)
	fields := map[string]interface{}{
		"type":                  tripType,
		"status":                models.TripStatusCompleted,
		"end_time":              endTs,
		"distance_meters":       stats.distance,
		"duration_seconds":      stats.durationSec,
		"avg_speed_kmh":         stats.avgKmh,
		"max_speed_kmh":         stats.maxKmh,
		"elevation_gain_meters": stats.elevationGain,
		"co2_saved_kg":          stats.distance / 1000 * co2SavedKgPerKm,
		"route_json":            routeJSON(points),
	}
	if err := s.trips.UpdateTripFields(trip.ID, fields); err != nil {
		log.Printf("[TrackingService] Failed to complete trip %s: %v", trip.ID, err)
		return
	}
	s.m.TripsCompleted.Inc()
	log.Printf("[TrackingService] Trip %s completed: %s, %.0fm in %ds",
		trip.ID, tripType, stats.distance, stats.durationSec)
}

// promoteSegmentsLocked turns each surviving segment of a multi-modal trip
// into an independent completed trip and cancels the parent with a note
// recording the split.
func (s *Service) promoteSegmentsLocked(parent *models.Trip, points []models.LocationPoint, seg segment.Result, endTs int64) {
	promoted := 0
	for _, sg := range seg.Segments {
		tripType, ok := models.TripTypeForActivity(sg.Type)
		if !ok {
			continue // driving/stationary legs are never persisted
		}

		segPoints := points[sg.StartIndex : sg.EndIndex+1]
		coords := coordsOf(segPoints)
		if report := validate.CheckDrift(coords, sg.DistanceMeters); !report.Passed {
			log.Printf("[TrackingService] Segment of trip %s failed validation: %s",
				parent.ID, strings.Join(report.Reasons, "; "))
			continue
		}

		startTs := segPoints[0].Timestamp
		segEndTs := segPoints[len(segPoints)-1].Timestamp
		stats := tripStats(segPoints, startTs, segEndTs)
		child := &models.Trip{
			ID:                  uuid.NewString(),
			UserID:              parent.UserID,
			Type:                tripType,
			Status:              models.TripStatusCompleted,
			StartTime:           startTs,
			EndTime:             segEndTs,
			DistanceMeters:      stats.distance,
			DurationSeconds:     stats.durationSec,
			AvgSpeedKmh:         stats.avgKmh,
			MaxSpeedKmh:         stats.maxKmh,
			ElevationGainMeters: stats.elevationGain,
			CO2SavedKg:          stats.distance / 1000 * co2SavedKgPerKm,
			Notes:               fmt.Sprintf("split from multi-modal trip %s", parent.ID),
			RouteJSON:           routeJSON(segPoints),
			SyncState:           models.SyncStateUnsynced,
		}
		if err := s.trips.CreateTrip(child); err != nil {
			log.Printf("[TrackingService] Failed to promote segment of trip %s: %v", parent.ID, err)
			continue
		}
		promoted++
		s.m.TripsPromoted.Inc()
	}

	if promoted == 0 {
		s.cancelLocked(parent, endTs, "multi-modal trip with no valid segments", "split")
		return
	}
	s.cancelLocked(parent, endTs, fmt.Sprintf("split into %d single-activity trips", promoted), "split")
}

// cancelLocked marks a trip cancelled with a human-readable reason stored as
// its note. Cancellation is data, not an error.
func (s *Service) cancelLocked(trip *models.Trip, endTs int64, reason, metricLabel string) {
	fields := map[string]interface{}{
		"status":   models.TripStatusCancelled,
		"end_time": endTs,
		"notes":    reason,
	}
	if err := s.trips.UpdateTripFields(trip.ID, fields); err != nil {
		log.Printf("[TrackingService] Failed to cancel trip %s: %v", trip.ID, err)
		return
	}
	s.m.TripsCancelled.WithLabelValues(metricLabel).Inc()
	log.Printf("[TrackingService] Trip %s cancelled: %s", trip.ID, reason)
}

type statsSummary struct {
	distance      float64
	durationSec   int64
	avgKmh        float64
	maxKmh        float64
	elevationGain float64
}

// tripStats recomputes final trip stats from the stored point sequence; the
// store is the source of truth, not the incremental accumulator.
func tripStats(points []models.LocationPoint, startTs, endTs int64) statsSummary {
	st := statsSummary{
		distance:    spatial.PathLength(coordsOf(points)),
		durationSec: (endTs - startTs) / 1000,
	}
	if st.durationSec > 0 {
		st.avgKmh = st.distance / float64(st.durationSec) * 3.6
	}
	var prevAlt *float64
	for _, p := range points {
		if kmh := p.SpeedMps * 3.6; kmh > st.maxKmh {
			st.maxKmh = kmh
		}
		if p.Altitude != nil {
			if prevAlt != nil {
				if gain := *p.Altitude - *prevAlt; gain > elevationNoiseFloorM {
					st.elevationGain += gain
				}
			}
			prevAlt = p.Altitude
		}
	}
	return st
}

func coordsOf(points []models.LocationPoint) []spatial.Point {
	coords := make([]spatial.Point, len(points))
	for i, p := range points {
		coords[i] = spatial.Point{Lat: p.Latitude, Lon: p.Longitude}
	}
	return coords
}

func speedsOf(points []models.LocationPoint) []float64 {
	speeds := make([]float64, len(points))
	for i, p := range points {
		speeds[i] = p.SpeedMps
	}
	return speeds
}

// majorityActivity is the fallback dominant type when segmentation dropped
// every candidate segment.
func majorityActivity(points []models.LocationPoint) string {
	counts := map[string]int{}
	for _, p := range points {
		counts[p.ActivityType]++
	}
	best, bestCount := "", 0
	for activity, count := range counts {
		if count > bestCount {
			best, bestCount = activity, count
		}
	}
	return best
}

// routeJSON serializes the ordered route for the completed trip record.
func routeJSON(points []models.LocationPoint) string {
	route := make([]models.RoutePoint, len(points))
	for i, p := range points {
		route[i] = models.RoutePoint{Lat: p.Latitude, Lng: p.Longitude, Timestamp: p.Timestamp}
	}
	data, err := json.Marshal(route)
	if err != nil {
		return ""
	}
	return string(data)
}
