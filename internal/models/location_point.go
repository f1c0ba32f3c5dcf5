package models

// Fix is one raw GPS reading pushed by the OS location provider. Optional
// fields are pointers so that "not reported" is distinguishable from zero.
type Fix struct {
	Latitude       float64  `json:"latitude" binding:"required"`
	Longitude      float64  `json:"longitude" binding:"required"`
	Altitude       *float64 `json:"altitude,omitempty"`
	AccuracyMeters *float64 `json:"accuracyMeters,omitempty"`
	SpeedMps       *float64 `json:"speedMps,omitempty"`
	HeadingDegrees *float64 `json:"headingDegrees,omitempty"`
	Timestamp      int64    `json:"timestamp" binding:"required"` // Unix timestamp in milliseconds
}

// LocationPoint is a stored, filtered fix belonging to exactly one trip.
// Points are append-only during an active trip and never mutated afterwards.
type LocationPoint struct {
	ID                 int64    `json:"id" db:"id"`
	TripID             string   `json:"tripId" db:"trip_id"`
	Latitude           float64  `json:"latitude" db:"latitude"`
	Longitude          float64  `json:"longitude" db:"longitude"`
	Altitude           *float64 `json:"altitude,omitempty" db:"altitude"`
	AccuracyMeters     *float64 `json:"accuracyMeters,omitempty" db:"accuracy_m"`
	SpeedMps           float64  `json:"speedMps" db:"speed_mps"` // resolved: reported or derived
	HeadingDegrees     *float64 `json:"headingDegrees,omitempty" db:"heading_deg"`
	Timestamp          int64    `json:"timestamp" db:"timestamp"` // Unix timestamp in milliseconds
	ActivityType       string   `json:"activityType" db:"activity_type"`
	ActivityConfidence int      `json:"activityConfidence" db:"activity_confidence"` // 0-100
	SyncState          string   `json:"syncState" db:"sync_state"`
}

// Activity type constants (per-point classification outcomes)
const (
	ActivityStationary = "stationary"
	ActivityWalking    = "walking"
	ActivityRunning    = "running"
	ActivityCycling    = "cycling"
	ActivityDriving    = "driving"
)

// TripTypeForActivity maps a dominant per-point activity to a persistable
// trip type. The second return is false for activities that can never become
// a final trip (stationary, driving).
func TripTypeForActivity(activity string) (string, bool) {
	switch activity {
	case ActivityWalking, ActivityRunning:
		return TripTypeWalk, true
	case ActivityCycling:
		return TripTypeCycle, true
	default:
		return "", false
	}
}
