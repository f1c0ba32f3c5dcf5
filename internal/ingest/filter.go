// Package ingest filters raw GPS fixes before they reach the trip pipeline:
// accuracy gating, stabilization buffering, physical outlier rejection and
// derived-speed fallback.
package ingest

import (
	"log"
	"sort"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/spatial"
)

// Thresholds defines configurable ingestion thresholds
type Thresholds struct {
	AccuracyIdleMaxM   float64 // relaxed gate while no trip is active
	AccuracyActiveMaxM float64 // strict gate during an active trip
	StabilizeFixes     int     // accurate fixes needed to stabilize
	StabilizeTimeoutMs int64   // fall back to the best fix after this long
	MaxImpliedSpeedMps float64 // physical ceiling vs the last stored point
	SpeedFallbackMaxMs int64   // max raw-fix gap for derived speed
	IdleBufferCap      int     // fixes retained while stabilized but idle
}

// DefaultThresholds provides default ingestion thresholds
var DefaultThresholds = Thresholds{
	AccuracyIdleMaxM:   50.0,  // easier to start a trip
	AccuracyActiveMaxM: 25.0,  // strict once recording
	StabilizeFixes:     2,
	StabilizeTimeoutMs: 15000, // 15 s
	MaxImpliedSpeedMps: 50.0,  // 180 km/h, satellite-reacquisition jumps
	SpeedFallbackMaxMs: 30000, // 30 s, avoids stale derivations
	IdleBufferCap:      10,
}

// Decision says what the pipeline should do with a fix.
type Decision int

const (
	// DecisionDrop rejects the fix entirely.
	DecisionDrop Decision = iota
	// DecisionBuffer holds the fix while waiting for stabilization.
	DecisionBuffer
	// DecisionAccept passes the fix on with a resolved speed.
	DecisionAccept
)

// Drop reason codes
const (
	ReasonLowAccuracy    = "LOW_ACCURACY"
	ReasonImpliedSpeed   = "IMPOSSIBLE_SPEED"
	ReasonNonMonotonicTs = "NON_MONOTONIC_TIMESTAMP"
)

// Outcome is the filter's verdict for one fix.
type Outcome struct {
	Decision   Decision
	Reason     string  // set for DecisionDrop
	SpeedMps   float64 // resolved speed, set for DecisionAccept
	Stabilized bool    // true when this fix completed stabilization
}

// Filter applies the ingestion rules against a session's state.
type Filter struct {
	cfg Thresholds
}

// NewFilter creates a filter with the given thresholds.
func NewFilter(cfg Thresholds) *Filter {
	return &Filter{cfg: cfg}
}

// Process runs one fix through the gate, stabilization, outlier and speed
// fallback stages. It mutates the session's buffer and raw-fix cursor but
// never the last-stored-point; the caller advances that after persisting.
func (f *Filter) Process(s *Session, fix models.Fix, tripActive bool) Outcome {
	// Accuracy gate: relaxed while idle, strict while recording.
	limit := f.cfg.AccuracyIdleMaxM
	if tripActive {
		limit = f.cfg.AccuracyActiveMaxM
	}
	if fix.AccuracyMeters != nil && *fix.AccuracyMeters > limit {
		// Inaccurate fixes still advance the stabilization clock: after the
		// timeout the best fix seen so far has to do.
		if !s.stabilized && len(s.buffer) > 0 && fix.Timestamp-s.firstFixAt >= f.cfg.StabilizeTimeoutMs {
			log.Printf("[IngestFilter] Stabilization timed out with %d buffered fixes, continuing with degraded accuracy", len(s.buffer))
			s.finishStabilize()
		}
		return Outcome{Decision: DecisionDrop, Reason: ReasonLowAccuracy}
	}

	speed := f.resolveSpeed(s, fix)
	s.noteRaw(fix)

	if !s.stabilized {
		return f.stabilize(s, fix, speed)
	}

	// Physical outlier rejection against the last stored point. Guards
	// against satellite-reacquisition jumps that imply impossible speed.
	if last := s.lastStored; last != nil {
		dtMs := fix.Timestamp - last.Timestamp
		if dtMs <= 0 {
			return Outcome{Decision: DecisionDrop, Reason: ReasonNonMonotonicTs}
		}
		dist := spatial.HaversineDistance(last.Latitude, last.Longitude, fix.Latitude, fix.Longitude)
		implied := dist / (float64(dtMs) / 1000.0)
		if implied > f.cfg.MaxImpliedSpeedMps {
			return Outcome{Decision: DecisionDrop, Reason: ReasonImpliedSpeed}
		}
	}

	if !tripActive {
		s.pushIdle(fix, f.cfg.IdleBufferCap)
	}

	return Outcome{Decision: DecisionAccept, SpeedMps: speed}
}

// stabilize buffers accurate fixes until enough accumulate; after the timeout
// it settles for the single best fix seen so far.
func (f *Filter) stabilize(s *Session, fix models.Fix, speed float64) Outcome {
	if s.firstFixAt == 0 {
		s.firstFixAt = fix.Timestamp
	}
	s.buffer = append(s.buffer, fix)

	if len(s.buffer) >= f.cfg.StabilizeFixes {
		s.finishStabilize()
		return Outcome{Decision: DecisionAccept, SpeedMps: speed, Stabilized: true}
	}

	if fix.Timestamp-s.firstFixAt >= f.cfg.StabilizeTimeoutMs {
		log.Printf("[IngestFilter] Stabilization timed out after %d fixes, continuing with degraded accuracy", len(s.buffer))
		s.finishStabilize()
		return Outcome{Decision: DecisionAccept, SpeedMps: speed, Stabilized: true}
	}

	return Outcome{Decision: DecisionBuffer}
}

// finishStabilize orders the buffer by timestamp, with the most accurate fix
// first among equals, and marks the session stabilized. The first buffer
// entry after sorting is the trip's start point candidate.
func (s *Session) finishStabilize() {
	sort.SliceStable(s.buffer, func(i, j int) bool {
		return s.buffer[i].Timestamp < s.buffer[j].Timestamp
	})
	s.stabilized = true
}

// StartPoint returns the most accurate buffered fix; used as the start point
// of a new trip.
func (s *Session) StartPoint() (models.Fix, bool) {
	if len(s.buffer) == 0 {
		return models.Fix{}, false
	}
	best := s.buffer[0]
	for _, fix := range s.buffer[1:] {
		if betterAccuracy(fix, best) {
			best = fix
		}
	}
	return best, true
}

func betterAccuracy(a, b models.Fix) bool {
	if a.AccuracyMeters == nil {
		return false
	}
	if b.AccuracyMeters == nil {
		return true
	}
	return *a.AccuracyMeters < *b.AccuracyMeters
}

// resolveSpeed returns the reported speed, or derives one from the distance
// and elapsed time to the previous raw fix when the device reports none.
func (f *Filter) resolveSpeed(s *Session, fix models.Fix) float64 {
	if fix.SpeedMps != nil && *fix.SpeedMps >= 0 {
		return *fix.SpeedMps
	}

	prev := s.prevRaw
	if prev == nil {
		return 0
	}
	dtMs := fix.Timestamp - prev.Timestamp
	if dtMs <= 0 || dtMs > f.cfg.SpeedFallbackMaxMs {
		return 0
	}
	dist := spatial.HaversineDistance(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude)
	return dist / (float64(dtMs) / 1000.0)
}

// noteRaw records the fix for future speed derivation.
func (s *Session) noteRaw(fix models.Fix) {
	f := fix
	s.prevRaw = &f
}

// pushIdle keeps a bounded window of accepted fixes while no trip is active,
// so a new trip can replay them as its first stored points.
func (s *Session) pushIdle(fix models.Fix, limit int) {
	s.buffer = append(s.buffer, fix)
	if limit > 0 && len(s.buffer) > limit {
		s.buffer = s.buffer[len(s.buffer)-limit:]
	}
}
