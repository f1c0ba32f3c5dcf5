// Package tracking owns the trip lifecycle: it drains filtered GPS fixes,
// decides when a trip starts and ends, and runs finished trips through
// segmentation and drift validation before they are persisted as completed.
package tracking

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greentrack/greentrack-go/internal/classify"
	"github.com/greentrack/greentrack-go/internal/ingest"
	"github.com/greentrack/greentrack-go/internal/metrics"
	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// TripStore is the persistence contract for trips. Operations are atomic at
// the single-record level.
type TripStore interface {
	CreateTrip(trip *models.Trip) error
	UpdateTripFields(id string, fields map[string]interface{}) error
	GetActiveTrip() (*models.Trip, error)
	GetTripByID(id string) (*models.Trip, error)
}

// LocationStore is the persistence contract for trip points.
type LocationStore interface {
	AppendLocation(point *models.LocationPoint) error
	GetLocationsByTrip(tripID string) ([]models.LocationPoint, error)
}

// Thresholds defines trip lifecycle tuning
type Thresholds struct {
	MovementStartMps  float64 // speed that can start a trip
	StationaryMps     float64 // at or below starts the stationary timer
	StationaryStopMs  int64   // stationary this long ends the trip
	MinTripDurationMs int64   // shorter trips are discarded
	MinTripDistanceM  float64
	ZombieMaxAgeMs    int64 // active trip with no newer point is force-ended
}

// DefaultThresholds provides default lifecycle thresholds
var DefaultThresholds = Thresholds{
	MovementStartMps:  1.0,
	StationaryMps:     0.5,
	StationaryStopMs:  180_000,       // 3 min
	MinTripDurationMs: 60_000,        // 1 min
	MinTripDistanceM:  100,
	ZombieMaxAgeMs:    45 * 60_000, // 45 min
}

// CO2 saved per person-powered kilometer versus an average car.
const co2SavedKgPerKm = 0.21

// Elevation deltas below this are barometric/GPS noise, not climbing.
const elevationNoiseFloorM = 1.0

// Service is the single writer for all trip and ingestion state. Fix
// processing is serialized behind one mutex: the background OS callback and
// the foreground watcher both funnel through it.
type Service struct {
	mu      sync.Mutex
	trips   TripStore
	points  LocationStore
	filter  *ingest.Filter
	session *ingest.Session
	cfg     Thresholds
	userID  string
	m       *metrics.Collector

	tracking  bool
	active    *models.Trip
	lastPoint *models.LocationPoint

	fixCh  chan models.Fix
	stopCh chan struct{}
	wg     sync.WaitGroup

	nowMs func() int64
}

// NewService wires the tracking pipeline.
func NewService(trips TripStore, points LocationStore, cfg Thresholds, ingestCfg ingest.Thresholds, userID string, m *metrics.Collector) *Service {
	return &Service{
		trips:   trips,
		points:  points,
		filter:  ingest.NewFilter(ingestCfg),
		session: ingest.NewSession(),
		cfg:     cfg,
		userID:  userID,
		m:       m,
		nowMs:   func() int64 { return time.Now().UnixMilli() },
	}
}

// StartTracking begins continuous fix processing. If a previous run left an
// active trip behind, it is either resumed or, when stale, force-terminated
// through the normal end-of-trip path.
func (s *Service) StartTracking() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracking {
		return nil
	}

	trip, err := s.trips.GetActiveTrip()
	if err != nil {
		return fmt.Errorf("failed to load active trip: %w", err)
	}
	s.session.Reset()

	if trip != nil {
		if s.recoverZombieLocked(trip) {
			trip = nil
		} else {
			// Resume: re-seed the outlier baseline from the last stored point.
			s.active = trip
			if points, err := s.points.GetLocationsByTrip(trip.ID); err == nil && len(points) > 0 {
				last := points[len(points)-1]
				s.lastPoint = &last
				s.session.MarkStored(models.Fix{
					Latitude:  last.Latitude,
					Longitude: last.Longitude,
					Timestamp: last.Timestamp,
				})
			}
			log.Printf("[TrackingService] Resumed active trip %s", trip.ID)
		}
	}

	s.tracking = true
	s.fixCh = make(chan models.Fix, 256)
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.pump(s.fixCh, s.stopCh)

	log.Printf("[TrackingService] Tracking started")
	return nil
}

// StopTracking cancels fix delivery, finalizes any active trip and clears
// session state.
func (s *Service) StopTracking() error {
	s.mu.Lock()
	if !s.tracking {
		s.mu.Unlock()
		return nil
	}
	s.tracking = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		endTs := s.active.StartTime
		if s.lastPoint != nil {
			endTs = s.lastPoint.Timestamp
		}
		s.finalizeTripLocked(s.active, endTs)
	}
	s.session.Reset()
	log.Printf("[TrackingService] Tracking stopped")
	return nil
}

// IsTracking reports whether fix processing is running.
func (s *Service) IsTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}

// ActiveTrip returns the current active trip, or nil.
func (s *Service) ActiveTrip() *models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	copied := *s.active
	return &copied
}

// SubmitFixes queues fixes for the processing goroutine. Used by the OS
// adapter boundary; delivery order within the batch is restored before use.
func (s *Service) SubmitFixes(fixes []models.Fix) {
	s.mu.Lock()
	ch := s.fixCh
	stop := s.stopCh
	running := s.tracking
	s.mu.Unlock()
	if !running {
		return
	}
	// the pump consumes one fix at a time, so ordering must be restored here
	sort.SliceStable(fixes, func(i, j int) bool { return fixes[i].Timestamp < fixes[j].Timestamp })
	for _, fix := range fixes {
		select {
		case ch <- fix:
		case <-stop:
			return
		}
	}
}

func (s *Service) pump(ch chan models.Fix, stop chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case fix := <-ch:
			s.ProcessFixes([]models.Fix{fix})
		case <-stop:
			return
		}
	}
}

// ProcessFixes runs a batch of fixes through the pipeline synchronously,
// in non-decreasing timestamp order, under the single-writer lock.
func (s *Service) ProcessFixes(fixes []models.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tracking {
		return
	}

	sort.SliceStable(fixes, func(i, j int) bool { return fixes[i].Timestamp < fixes[j].Timestamp })
	for _, fix := range fixes {
		s.processFixLocked(fix)
	}
}

// CheckZombie force-terminates an abandoned active trip. Called on app
// resume; returns true when a trip was terminated.
func (s *Service) CheckZombie() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trip := s.active
	if trip == nil {
		var err error
		trip, err = s.trips.GetActiveTrip()
		if err != nil {
			return false, fmt.Errorf("failed to load active trip: %w", err)
		}
	}
	if trip == nil {
		return false, nil
	}
	return s.recoverZombieLocked(trip), nil
}

// recoverZombieLocked ends the trip through the normal completion path when
// its newest point is older than the zombie threshold, using that stale
// timestamp as the synthetic end time.
func (s *Service) recoverZombieLocked(trip *models.Trip) bool {
	lastTs := trip.StartTime
	points, err := s.points.GetLocationsByTrip(trip.ID)
	if err == nil && len(points) > 0 {
		lastTs = points[len(points)-1].Timestamp
	}

	if s.nowMs()-lastTs <= s.cfg.ZombieMaxAgeMs {
		return false
	}

	log.Printf("[TrackingService] Zombie trip %s detected, last update %dms ago", trip.ID, s.nowMs()-lastTs)
	s.active = trip
	s.finalizeTripLocked(trip, lastTs)
	return true
}

func (s *Service) processFixLocked(fix models.Fix) {
	out := s.filter.Process(s.session, fix, s.active != nil)
	switch out.Decision {
	case ingest.DecisionDrop:
		s.m.FixesRejected.WithLabelValues(out.Reason).Inc()
		return
	case ingest.DecisionBuffer:
		return
	}
	s.m.FixesAccepted.Inc()

	if s.active == nil {
		s.maybeStartTripLocked(fix, out.SpeedMps)
		return
	}

	s.appendPointLocked(fix, out.SpeedMps)
}

// maybeStartTripLocked opens a trip when a stabilized fix classifies as
// person-powered movement above the start threshold. Driving never starts
// a trip.
func (s *Service) maybeStartTripLocked(fix models.Fix, speed float64) {
	if speed <= s.cfg.MovementStartMps {
		return
	}
	c := classify.BySpeed(speed)
	switch c.Type {
	case models.ActivityWalking, models.ActivityRunning, models.ActivityCycling:
	default:
		return
	}

	tripType, _ := models.TripTypeForActivity(c.Type)
	replay := s.session.Buffer()

	// The trip anchors on the most-accurate buffered fix, not the earliest;
	// the whole buffer is still replayed as the first stored points.
	startTime := fix.Timestamp
	if anchor, ok := s.session.StartPoint(); ok {
		startTime = anchor.Timestamp
	}

	trip := &models.Trip{
		ID:        uuid.NewString(),
		UserID:    s.userID,
		Type:      tripType, // provisional; the final type is decided at trip end
		Status:    models.TripStatusActive,
		StartTime: startTime,
		SyncState: models.SyncStateUnsynced,
	}
	if err := s.trips.CreateTrip(trip); err != nil {
		log.Printf("[TrackingService] Failed to create trip: %v", err)
		return
	}
	s.active = trip
	s.lastPoint = nil
	s.m.TripsStarted.Inc()
	log.Printf("[TrackingService] Trip %s started as %s", trip.ID, tripType)

	// The stabilization buffer becomes the trip's first stored points.
	for _, buffered := range replay {
		spd := 0.0
		if buffered.SpeedMps != nil && *buffered.SpeedMps >= 0 {
			spd = *buffered.SpeedMps
		}
		s.storePointLocked(buffered, spd)
	}
}

// appendPointLocked stores a fix on the active trip, updates the trip's
// incremental stats and evaluates the stationary end-of-trip rule.
func (s *Service) appendPointLocked(fix models.Fix, speed float64) {
	if !s.storePointLocked(fix, speed) {
		return
	}

	if speed <= s.cfg.StationaryMps {
		if s.session.StationarySince == 0 {
			s.session.StationarySince = fix.Timestamp
		} else if fix.Timestamp-s.session.StationarySince >= s.cfg.StationaryStopMs {
			s.finalizeTripLocked(s.active, fix.Timestamp)
		}
	} else {
		s.session.StationarySince = 0
	}
}

// storePointLocked persists one fix as a location point. A persistence error
// must not crash the ingestion path: the fix is logged and skipped.
func (s *Service) storePointLocked(fix models.Fix, speed float64) bool {
	c := classify.BySpeed(speed)
	point := &models.LocationPoint{
		TripID:             s.active.ID,
		Latitude:           fix.Latitude,
		Longitude:          fix.Longitude,
		Altitude:           fix.Altitude,
		AccuracyMeters:     fix.AccuracyMeters,
		SpeedMps:           speed,
		HeadingDegrees:     fix.HeadingDegrees,
		Timestamp:          fix.Timestamp,
		ActivityType:       c.Type,
		ActivityConfidence: c.Confidence,
		SyncState:          models.SyncStateUnsynced,
	}
	if err := s.points.AppendLocation(point); err != nil {
		log.Printf("[TrackingService] Failed to append point, skipping fix: %v", err)
		return false
	}
	s.session.MarkStored(fix)
	s.accumulateLocked(point)
	return true
}

// accumulateLocked folds one stored point into the active trip's stats and
// persists them.
func (s *Service) accumulateLocked(point *models.LocationPoint) {
	trip := s.active
	prev := s.lastPoint
	s.lastPoint = point
	if prev == nil {
		return
	}

	trip.DistanceMeters += spatial.HaversineDistance(prev.Latitude, prev.Longitude, point.Latitude, point.Longitude)
	trip.DurationSeconds = (point.Timestamp - trip.StartTime) / 1000
	// replayed buffer points may predate the anchor timestamp
	if trip.DurationSeconds < 0 {
		trip.DurationSeconds = 0
	}
	if trip.DurationSeconds > 0 {
		trip.AvgSpeedKmh = trip.DistanceMeters / float64(trip.DurationSeconds) * 3.6
	}
	if kmh := point.SpeedMps * 3.6; kmh > trip.MaxSpeedKmh {
		trip.MaxSpeedKmh = kmh
	}
	if prev.Altitude != nil && point.Altitude != nil {
		if gain := *point.Altitude - *prev.Altitude; gain > elevationNoiseFloorM {
			trip.ElevationGainMeters += gain
		}
	}

	if err := s.trips.UpdateTripFields(trip.ID, map[string]interface{}{
		"distance_meters":       trip.DistanceMeters,
		"duration_seconds":      trip.DurationSeconds,
		"avg_speed_kmh":         trip.AvgSpeedKmh,
		"max_speed_kmh":         trip.MaxSpeedKmh,
		"elevation_gain_meters": trip.ElevationGainMeters,
	}); err != nil {
		log.Printf("[TrackingService] Failed to update trip stats: %v", err)
	}
}
