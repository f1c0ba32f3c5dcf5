package ingest

import "github.com/greentrack/greentrack-go/internal/models"

// Session holds the mutable per-tracking-session state of the ingestion
// filter: the stabilization buffer, the last stored point for outlier checks
// and the previous raw fix for speed derivation. It is owned by the tracking
// service and fully reset whenever a trip ends or tracking stops.
type Session struct {
	buffer     []models.Fix
	firstFixAt int64 // ms, timestamp of the first buffered fix
	stabilized bool

	lastStored *models.Fix // last fix persisted as a location point
	prevRaw    *models.Fix // previous accepted raw fix, for speed derivation

	StationarySince int64 // ms, 0 when moving
}

// NewSession returns an empty ingestion session.
func NewSession() *Session {
	return &Session{}
}

// Reset clears all session state. Called on trip end and tracking stop.
func (s *Session) Reset() {
	s.buffer = nil
	s.firstFixAt = 0
	s.stabilized = false
	s.lastStored = nil
	s.prevRaw = nil
	s.StationarySince = 0
}

// Stabilized reports whether the session has seen enough accurate fixes to
// trust the GPS signal.
func (s *Session) Stabilized() bool { return s.stabilized }

// Buffer returns the buffered fixes in timestamp order. These become the
// first stored points of a new trip.
func (s *Session) Buffer() []models.Fix { return s.buffer }

// MarkStored advances the last-stored-point cursor. The tracking service
// calls this after a fix has actually been persisted, so that a failed write
// does not move the outlier baseline.
func (s *Session) MarkStored(fix models.Fix) {
	f := fix
	s.lastStored = &f
}

// LastStored returns the last persisted fix, or nil if none.
func (s *Session) LastStored() *models.Fix { return s.lastStored }
