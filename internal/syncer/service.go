// Package syncer uploads locally completed trips to the backend. The device
// is offline-first: trips accumulate in SQLite and a sync run pushes whatever
// is pending, in batches, surviving partial failure.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greentrack/greentrack-go/internal/metrics"
	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
	"github.com/greentrack/greentrack-go/internal/validate"
)

// BatchSize is how many trips go into one upload request.
const BatchSize = 50

// maxAttempts bounds retries of one trip on network errors.
const maxAttempts = 4

// backoffSchedule is the wait before each retry, attempt-indexed.
var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

// TripStore is the subset of trip persistence the syncer needs.
type TripStore interface {
	GetUnsyncedTrips() ([]models.Trip, error)
	UpdateTripFields(id string, fields map[string]interface{}) error
}

// LocationStore provides the stored route when a trip carries no route JSON.
type LocationStore interface {
	GetLocationsByTrip(tripID string) ([]models.LocationPoint, error)
}

// Result summarizes one sync run.
type Result struct {
	SyncedCount int      `json:"syncedCount"`
	FailedCount int      `json:"failedCount"`
	Errors      []string `json:"errors,omitempty"`
}

// Service drives sync runs. Only one run may be in flight at a time.
type Service struct {
	trips   TripStore
	points  LocationStore
	backend Backend
	token   string
	m       *metrics.Collector

	running atomic.Bool
	sleep   func(time.Duration)
	now     func() time.Time
}

// NewService wires a sync service against a backend.
func NewService(trips TripStore, points LocationStore, backend Backend, token string, m *metrics.Collector) *Service {
	return &Service{
		trips:   trips,
		points:  points,
		backend: backend,
		token:   token,
		m:       m,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Run executes one sync pass: re-validate pending trips, upload them in
// batches, and record per-trip outcomes. An unreachable backend is not an
// error, the run just makes no progress. An expired or rejected token aborts
// the run with ErrAuth.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrSyncRunning
	}
	defer s.running.Store(false)

	s.m.SyncRuns.Inc()

	if err := s.checkTokenExpiry(); err != nil {
		return Result{}, err
	}

	if err := s.backend.Ping(ctx); err != nil {
		log.Printf("[SyncService] Backend unreachable, skipping run: %v", err)
		return Result{}, nil
	}

	// The store is the source of truth: re-read the pending set before each
	// batch instead of carrying one snapshot across network calls. Trips
	// already attempted this run are skipped so a trip left unsynced by a
	// network failure cannot loop within the same run.
	var result Result
	attempted := make(map[string]bool)
	logged := false
	for {
		pending, err := s.trips.GetUnsyncedTrips()
		if err != nil {
			return result, fmt.Errorf("failed to load unsynced trips: %w", err)
		}
		if !logged && len(pending) > 0 {
			log.Printf("[SyncService] Syncing %d pending trips", len(pending))
			logged = true
		}

		batch := make([]models.Trip, 0, BatchSize)
		payloads := make(map[string]TripPayload, BatchSize)
		newlySeen := 0
		for _, trip := range pending {
			if attempted[trip.ID] {
				continue
			}
			attempted[trip.ID] = true
			newlySeen++

			payload, reason := s.prepare(trip)
			if reason != "" {
				s.markFailed(trip.ID)
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("trip %s: %s", trip.ID, reason))
				s.m.SyncUploads.WithLabelValues("rejected").Inc()
				continue
			}
			batch = append(batch, trip)
			payloads[trip.ID] = payload
			if len(batch) == BatchSize {
				break
			}
		}
		if newlySeen == 0 {
			break
		}
		if len(batch) == 0 {
			continue
		}

		if err := s.syncBatch(ctx, batch, payloads, &result); err != nil {
			return result, err
		}
	}

	if logged {
		log.Printf("[SyncService] Sync finished: %d synced, %d failed", result.SyncedCount, result.FailedCount)
	}
	return result, nil
}

// checkTokenExpiry rejects a token that is already expired without spending
// a round trip. Signature verification is the backend's job.
func (s *Service) checkTokenExpiry() error {
	token, _, err := jwt.NewParser().ParseUnverified(s.token, jwt.MapClaims{})
	if err != nil {
		return nil // opaque tokens pass through, the backend decides
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(s.now()) {
		return fmt.Errorf("%w: token expired at %s", ErrAuth, exp.Format(time.RFC3339))
	}
	return nil
}

// prepare re-validates a trip and builds its upload payload. A non-empty
// reason means the trip must not be uploaded.
func (s *Service) prepare(trip models.Trip) (TripPayload, string) {
	if trip.Status != models.TripStatusCompleted {
		return TripPayload{}, fmt.Sprintf("status %q is not uploadable", trip.Status)
	}
	if trip.Type != models.TripTypeWalk && trip.Type != models.TripTypeCycle {
		return TripPayload{}, fmt.Sprintf("type %q is not uploadable", trip.Type)
	}
	if min := validate.MinSyncDistanceM(trip.Type); trip.DistanceMeters < min {
		return TripPayload{}, fmt.Sprintf("distance %.0fm below %s minimum %.0fm", trip.DistanceMeters, trip.Type, min)
	}

	route, err := s.routeOf(trip)
	if err != nil {
		return TripPayload{}, fmt.Sprintf("route unavailable: %v", err)
	}
	if len(route) < 2 {
		return TripPayload{}, "route has fewer than 2 points"
	}

	coords := make([]spatial.Point, len(route))
	for i, p := range route {
		coords[i] = spatial.Point{Lat: p.Lat, Lon: p.Lng}
	}
	if report := validate.CheckDrift(coords, trip.DistanceMeters); !report.Passed {
		return TripPayload{}, "geometry re-validation failed: " + report.Reasons[0]
	}

	payload := TripPayload{
		ClientID:       trip.ID,
		Type:           trip.Type,
		IsManual:       trip.IsManual,
		StartTimestamp: trip.StartTime,
		EndTimestamp:   trip.EndTime,
		Route:          route,
		Notes:          trip.Notes,
	}
	if trip.ElevationGainMeters > 0 {
		gain := trip.ElevationGainMeters
		payload.ElevationGain = &gain
	}
	return payload, ""
}

// routeOf prefers the route frozen at completion and falls back to the
// stored points.
func (s *Service) routeOf(trip models.Trip) ([]models.RoutePoint, error) {
	if trip.RouteJSON != "" {
		var route []models.RoutePoint
		if err := json.Unmarshal([]byte(trip.RouteJSON), &route); err == nil {
			return route, nil
		}
		log.Printf("[SyncService] Trip %s has malformed route JSON, rebuilding from points", trip.ID)
	}
	points, err := s.points.GetLocationsByTrip(trip.ID)
	if err != nil {
		return nil, err
	}
	route := make([]models.RoutePoint, len(points))
	for i, p := range points {
		route[i] = models.RoutePoint{Lat: p.Latitude, Lng: p.Longitude, Timestamp: p.Timestamp}
	}
	return route, nil
}

// syncBatch uploads one page of trips. The batch endpoint is tried first;
// any batch-level or per-trip trouble falls back to individual uploads so a
// single bad trip cannot block the rest.
func (s *Service) syncBatch(ctx context.Context, trips []models.Trip, payloads map[string]TripPayload, result *Result) error {
	batch := make([]TripPayload, len(trips))
	for i, trip := range trips {
		batch[i] = payloads[trip.ID]
	}

	results, err := s.backend.UploadBatch(ctx, batch)
	if err != nil {
		if isAuth(err) {
			return err
		}
		log.Printf("[SyncService] Batch upload failed, retrying trips individually: %v", err)
		for _, trip := range trips {
			if err := s.syncOne(ctx, trip, payloads[trip.ID], result); err != nil {
				return err
			}
		}
		return nil
	}

	byClient := make(map[string]BatchResult, len(results))
	for _, r := range results {
		byClient[r.ClientID] = r
	}
	for _, trip := range trips {
		r, ok := byClient[trip.ID]
		if !ok || r.Err != nil {
			if err := s.syncOne(ctx, trip, payloads[trip.ID], result); err != nil {
				return err
			}
			continue
		}
		s.markSynced(trip.ID, r.BackendID)
		result.SyncedCount++
		s.m.SyncUploads.WithLabelValues("synced").Inc()
	}
	return nil
}

// syncOne uploads a single trip with bounded retries. Network errors back
// off and retry; a duplicate means the backend already holds the trip and is
// treated as success; an auth failure aborts the whole run.
func (s *Service) syncOne(ctx context.Context, trip models.Trip, payload TripPayload, result *Result) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			s.sleep(backoffSchedule[attempt-1])
		}

		backendID, err := s.backend.UploadTrip(ctx, payload)
		switch {
		case err == nil:
			s.markSynced(trip.ID, backendID)
			result.SyncedCount++
			s.m.SyncUploads.WithLabelValues("synced").Inc()
			return nil
		case isDuplicate(err):
			s.markSynced(trip.ID, 0)
			result.SyncedCount++
			s.m.SyncUploads.WithLabelValues("duplicate").Inc()
			return nil
		case isAuth(err):
			return err
		case isNetwork(err):
			lastErr = err
			continue
		default:
			s.markFailed(trip.ID)
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("trip %s: %v", trip.ID, err))
			s.m.SyncUploads.WithLabelValues("rejected").Inc()
			return nil
		}
	}

	// Retries exhausted on a flaky link. The trip keeps its unsynced state
	// so the next run picks it up again; only the run result records the
	// failure.
	result.FailedCount++
	result.Errors = append(result.Errors, fmt.Sprintf("trip %s: %v", trip.ID, lastErr))
	s.m.SyncUploads.WithLabelValues("network_failed").Inc()
	return nil
}

func (s *Service) markSynced(tripID string, backendID int64) {
	fields := map[string]interface{}{"sync_state": models.SyncStateSynced}
	if backendID != 0 {
		fields["backend_id"] = backendID
	}
	if err := s.trips.UpdateTripFields(tripID, fields); err != nil {
		log.Printf("[SyncService] Failed to mark trip %s synced: %v", tripID, err)
	}
}

func (s *Service) markFailed(tripID string) {
	if err := s.trips.UpdateTripFields(tripID, map[string]interface{}{"sync_state": models.SyncStateFailed}); err != nil {
		log.Printf("[SyncService] Failed to mark trip %s failed: %v", tripID, err)
	}
}
