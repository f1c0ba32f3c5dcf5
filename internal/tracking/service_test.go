package tracking

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrack/greentrack-go/internal/ingest"
	"github.com/greentrack/greentrack-go/internal/metrics"
	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// memStore implements TripStore and LocationStore in memory.
type memStore struct {
	mu     sync.Mutex
	trips  map[string]*models.Trip
	order  []string
	points map[string][]models.LocationPoint
}

func newMemStore() *memStore {
	return &memStore{trips: map[string]*models.Trip{}, points: map[string][]models.LocationPoint{}}
}

func (m *memStore) CreateTrip(trip *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *trip
	m.trips[trip.ID] = &copied
	m.order = append(m.order, trip.ID)
	return nil
}

func (m *memStore) UpdateTripFields(id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return fmt.Errorf("trip %s not found", id)
	}
	for k, v := range fields {
		switch k {
		case "status":
			trip.Status = v.(string)
		case "type":
			trip.Type = v.(string)
		case "end_time":
			trip.EndTime = v.(int64)
		case "notes":
			trip.Notes = v.(string)
		case "distance_meters":
			trip.DistanceMeters = v.(float64)
		case "duration_seconds":
			trip.DurationSeconds = v.(int64)
		case "avg_speed_kmh":
			trip.AvgSpeedKmh = v.(float64)
		case "max_speed_kmh":
			trip.MaxSpeedKmh = v.(float64)
		case "elevation_gain_meters":
			trip.ElevationGainMeters = v.(float64)
		case "co2_saved_kg":
			trip.CO2SavedKg = v.(float64)
		case "route_json":
			trip.RouteJSON = v.(string)
		case "sync_state":
			trip.SyncState = v.(string)
		case "backend_id":
			trip.BackendID = v.(int64)
		}
	}
	return nil
}

func (m *memStore) GetActiveTrip() (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		t := m.trips[id]
		if t.Status == models.TripStatusActive || t.Status == models.TripStatusPaused {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetTripByID(id string) (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trips[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) AppendLocation(point *models.LocationPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	point.ID = int64(len(m.points[point.TripID]) + 1)
	m.points[point.TripID] = append(m.points[point.TripID], *point)
	return nil
}

func (m *memStore) GetLocationsByTrip(tripID string) ([]models.LocationPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points := append([]models.LocationPoint(nil), m.points[tripID]...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}

func (m *memStore) allTrips() []*models.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Trip, 0, len(m.order))
	for _, id := range m.order {
		copied := *m.trips[id]
		out = append(out, &copied)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func newTestService(store *memStore) *Service {
	return NewService(store, store, DefaultThresholds, ingest.DefaultThresholds, "user-1", metrics.NewCollector())
}

// walkFixes generates fixes along one bearing at the given reported speed and
// cadence, starting at ts.
func walkFixes(lat, lon float64, speedMps float64, cadenceSec, n int, ts int64) ([]models.Fix, float64, float64) {
	fixes := make([]models.Fix, 0, n)
	for i := 0; i < n; i++ {
		fixes = append(fixes, models.Fix{
			Latitude:       lat,
			Longitude:      lon,
			AccuracyMeters: ptr(8),
			SpeedMps:       ptr(speedMps),
			Timestamp:      ts,
		})
		lat, lon = spatial.DestinationPoint(lat, lon, 40, speedMps*float64(cadenceSec))
		ts += int64(cadenceSec) * 1000
	}
	return fixes, lat, lon
}

// stationaryFixes holds position with near-zero speed.
func stationaryFixes(lat, lon float64, cadenceSec, n int, ts int64) []models.Fix {
	fixes := make([]models.Fix, 0, n)
	for i := 0; i < n; i++ {
		fixes = append(fixes, models.Fix{
			Latitude:       lat,
			Longitude:      lon,
			AccuracyMeters: ptr(8),
			SpeedMps:       ptr(0.2),
			Timestamp:      ts,
		})
		ts += int64(cadenceSec) * 1000
	}
	return fixes
}

// Scenario: steady 1.5 m/s walk for 5 minutes covering 450m, then standing
// still. The trip must complete as a walk.
func TestSteadyWalkCompletes(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	start := int64(1_700_000_000_000)
	fixes, lastLat, lastLon := walkFixes(46.0, 7.0, 1.5, 1, 300, start)
	svc.ProcessFixes(fixes)

	require.NotNil(t, svc.ActiveTrip())

	still := stationaryFixes(lastLat, lastLon, 5, 40, start+300_000)
	svc.ProcessFixes(still)

	assert.Nil(t, svc.ActiveTrip())
	trips := store.allTrips()
	require.Len(t, trips, 1)
	trip := trips[0]
	assert.Equal(t, models.TripStatusCompleted, trip.Status)
	assert.Equal(t, models.TripTypeWalk, trip.Type)
	assert.Greater(t, trip.DistanceMeters, 400.0)
	assert.NotEmpty(t, trip.RouteJSON)
	assert.Greater(t, trip.CO2SavedKg, 0.0)
	assert.Equal(t, models.SyncStateUnsynced, trip.SyncState)
}

func TestDrivingSpeedNeverStartsTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	fixes, _, _ := walkFixes(46.0, 7.0, 15.0, 1, 60, 1_700_000_000_000) // 54 km/h
	svc.ProcessFixes(fixes)

	assert.Nil(t, svc.ActiveTrip())
	assert.Empty(t, store.allTrips())
}

func TestOutlierFixLeavesTripUnchanged(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	start := int64(1_700_000_000_000)
	fixes, lastLat, lastLon := walkFixes(46.0, 7.0, 1.5, 1, 30, start)
	svc.ProcessFixes(fixes)
	trip := svc.ActiveTrip()
	require.NotNil(t, trip)

	stored, _ := store.GetLocationsByTrip(trip.ID)
	countBefore := len(stored)
	lastBefore := stored[countBefore-1]

	// 300m jump in 1s: implies >180 km/h, must be rejected outright
	jumpLat, jumpLon := spatial.DestinationPoint(lastLat, lastLon, 40, 300)
	svc.ProcessFixes([]models.Fix{{
		Latitude:       jumpLat,
		Longitude:      jumpLon,
		AccuracyMeters: ptr(8),
		SpeedMps:       ptr(1.5),
		Timestamp:      start + 31_000,
	}})

	stored, _ = store.GetLocationsByTrip(trip.ID)
	assert.Len(t, stored, countBefore)
	assert.Equal(t, lastBefore.Timestamp, stored[len(stored)-1].Timestamp)
}

func TestSinglePointTripIsDiscarded(t *testing.T) {
	store := newMemStore()
	trip := &models.Trip{
		ID:        "trip-1",
		UserID:    "user-1",
		Type:      models.TripTypeWalk,
		Status:    models.TripStatusActive,
		StartTime: 1_700_000_000_000,
		SyncState: models.SyncStateUnsynced,
	}
	require.NoError(t, store.CreateTrip(trip))
	require.NoError(t, store.AppendLocation(&models.LocationPoint{
		TripID: "trip-1", Latitude: 46, Longitude: 7, Timestamp: 1_700_000_000_000,
	}))

	svc := newTestService(store)
	svc.nowMs = func() int64 { return 1_700_000_060_000 } // recent enough to resume
	require.NoError(t, svc.StartTracking())
	require.NoError(t, svc.StopTracking())

	got, _ := store.GetTripByID("trip-1")
	assert.Equal(t, models.TripStatusCancelled, got.Status)
	assert.Contains(t, got.Notes, "too short")
}

func TestZombieRecoveryBoundary(t *testing.T) {
	tests := []struct {
		name       string
		ageMinutes int64
		terminated bool
	}{
		{"44 minutes old stays active", 44, false},
		{"46 minutes old is terminated", 46, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			lastTs := int64(1_700_000_000_000)
			trip := &models.Trip{
				ID: "trip-z", UserID: "user-1", Type: models.TripTypeWalk,
				Status: models.TripStatusActive, StartTime: lastTs - 600_000,
				SyncState: models.SyncStateUnsynced,
			}
			require.NoError(t, store.CreateTrip(trip))
			require.NoError(t, store.AppendLocation(&models.LocationPoint{
				TripID: "trip-z", Latitude: 46, Longitude: 7, Timestamp: lastTs,
			}))

			svc := newTestService(store)
			svc.nowMs = func() int64 { return lastTs + tt.ageMinutes*60_000 }

			terminated, err := svc.CheckZombie()
			require.NoError(t, err)
			assert.Equal(t, tt.terminated, terminated)

			got, _ := store.GetTripByID("trip-z")
			if tt.terminated {
				assert.True(t, got.IsTerminal())
				assert.Equal(t, lastTs, got.EndTime) // synthetic end = stale timestamp
			} else {
				assert.Equal(t, models.TripStatusActive, got.Status)
			}
		})
	}
}

// Walk, cycle, walk: the parent trip is cancelled with a split note and each
// leg that meets the minimums becomes its own completed trip.
func TestMultiModalTripIsSplit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	start := int64(1_700_000_000_000)
	walk1, lat, lon := walkFixes(46.0, 7.0, 1.4, 5, 24, start)
	svc.ProcessFixes(walk1)
	cycle, lat, lon := walkFixes(lat, lon, 5.0, 5, 36, start+120_000)
	svc.ProcessFixes(cycle)
	walk2, lat, lon := walkFixes(lat, lon, 1.4, 5, 24, start+300_000)
	svc.ProcessFixes(walk2)
	svc.ProcessFixes(stationaryFixes(lat, lon, 5, 40, start+420_000))

	trips := store.allTrips()
	require.GreaterOrEqual(t, len(trips), 3)

	parent := trips[0]
	assert.Equal(t, models.TripStatusCancelled, parent.Status)
	assert.Contains(t, parent.Notes, "split into")

	typeCount := map[string]int{}
	for _, trip := range trips[1:] {
		assert.Equal(t, models.TripStatusCompleted, trip.Status)
		typeCount[trip.Type]++
	}
	assert.GreaterOrEqual(t, typeCount[models.TripTypeCycle], 1)
	assert.GreaterOrEqual(t, typeCount[models.TripTypeWalk], 1)
}

// The trip must anchor on the most-accurate buffered fix while the whole
// stabilization buffer still becomes the first stored points.
func TestTripStartAnchorsMostAccurateFix(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	start := int64(1_700_000_000_000)
	lat2, lon2 := spatial.DestinationPoint(46.0, 7.0, 40, 1.5)
	svc.ProcessFixes([]models.Fix{
		{Latitude: 46.0, Longitude: 7.0, AccuracyMeters: ptr(20), SpeedMps: ptr(1.5), Timestamp: start},
		{Latitude: lat2, Longitude: lon2, AccuracyMeters: ptr(5), SpeedMps: ptr(1.5), Timestamp: start + 1000},
	})

	trip := svc.ActiveTrip()
	require.NotNil(t, trip)
	assert.Equal(t, start+1000, trip.StartTime) // the 5m fix, not the earlier 20m one

	stored, err := store.GetLocationsByTrip(trip.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, start, stored[0].Timestamp)
	assert.GreaterOrEqual(t, trip.DurationSeconds, int64(0))
}

// An out-of-order batch through the queue path must be sorted before the
// per-fix pump sees it, or the earlier fixes get dropped as non-monotonic.
func TestSubmitFixesSortsBatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	fixes, _, _ := walkFixes(46.0, 7.0, 1.5, 1, 30, 1_700_000_000_000)
	reversed := make([]models.Fix, len(fixes))
	for i, fix := range fixes {
		reversed[len(fixes)-1-i] = fix
	}
	svc.SubmitFixes(reversed)

	require.Eventually(t, func() bool {
		trip := svc.ActiveTrip()
		if trip == nil {
			return false
		}
		stored, _ := store.GetLocationsByTrip(trip.ID)
		return len(stored) == len(fixes)
	}, 2*time.Second, 10*time.Millisecond)
}

// SubmitFixes is the background delivery path: fixes are queued and drained
// by the pump goroutine instead of being processed inline.
func TestSubmitFixesDrainsAsynchronously(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StartTracking())

	fixes, _, _ := walkFixes(46.0, 7.0, 1.5, 1, 30, 1_700_000_000_000)
	svc.SubmitFixes(fixes)

	require.Eventually(t, func() bool { return svc.ActiveTrip() != nil },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.StopTracking())
	svc.SubmitFixes(fixes) // after stop this must be a no-op, not a hang
}

func TestStopTrackingIgnoredWhenIdle(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.StopTracking())
	assert.False(t, svc.IsTracking())

	require.NoError(t, svc.StartTracking())
	assert.True(t, svc.IsTracking())
	require.NoError(t, svc.StopTracking())
	assert.False(t, svc.IsTracking())
}
