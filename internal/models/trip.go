package models

import "time"

// Trip represents one recorded movement (walk or cycle) from start to stop.
// A trip is created when movement is detected, mutated while points arrive,
// and becomes terminal (completed/cancelled) exactly once.
type Trip struct {
	ID     string `json:"id" db:"id"` // client-generated UUID, idempotence key for sync
	UserID string `json:"userId" db:"user_id"`

	Type     string `json:"type" db:"type"`     // walk | cycle
	Status   string `json:"status" db:"status"` // active | paused | completed | cancelled
	IsManual bool   `json:"isManual" db:"is_manual"`

	// Temporal info (Unix timestamps in milliseconds)
	StartTime       int64 `json:"startTime" db:"start_time"`
	EndTime         int64 `json:"endTime,omitempty" db:"end_time"`
	DurationSeconds int64 `json:"durationSeconds" db:"duration_seconds"`

	// Cumulative stats
	DistanceMeters      float64 `json:"distanceMeters" db:"distance_meters"`
	AvgSpeedKmh         float64 `json:"avgSpeedKmh" db:"avg_speed_kmh"`
	MaxSpeedKmh         float64 `json:"maxSpeedKmh" db:"max_speed_kmh"`
	ElevationGainMeters float64 `json:"elevationGainMeters" db:"elevation_gain_meters"`
	CO2SavedKg          float64 `json:"co2SavedKg" db:"co2_saved_kg"`

	Notes     string `json:"notes,omitempty" db:"notes"`
	RouteJSON string `json:"routeData,omitempty" db:"route_json"` // populated at completion

	SyncState string `json:"syncState" db:"sync_state"` // unsynced | synced | failed
	BackendID int64  `json:"backendId,omitempty" db:"backend_id"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Trip type constants
const (
	TripTypeWalk  = "walk"
	TripTypeCycle = "cycle"
)

// Trip status constants
const (
	TripStatusActive    = "active"
	TripStatusPaused    = "paused"
	TripStatusCompleted = "completed"
	TripStatusCancelled = "cancelled"
)

// Sync state constants
const (
	SyncStateUnsynced = "unsynced"
	SyncStateSynced   = "synced"
	SyncStateFailed   = "failed"
)

// IsTerminal reports whether the trip has reached a terminal status.
func (t *Trip) IsTerminal() bool {
	return t.Status == TripStatusCompleted || t.Status == TripStatusCancelled
}

// RoutePoint is one entry of the route data stored on a completed trip and
// of the sync upload payload.
type RoutePoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

// TripCorrection is a user-applied fix to a finished trip. Nil fields are
// left untouched.
type TripCorrection struct {
	Type     *string `json:"type,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	IsManual *bool   `json:"isManual,omitempty"`
}

// TripsResponse represents a paginated response of trips
type TripsResponse struct {
	Data       []Trip `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}
