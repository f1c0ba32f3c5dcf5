package models

// TripSegment is a contiguous index range over a trip's point sequence with a
// single dominant activity type. Segments are transient: they only exist
// during post-hoc segmentation, and surviving segments of a multi-modal trip
// are promoted into trips of their own.
type TripSegment struct {
	StartIndex      int     `json:"startIndex"`
	EndIndex        int     `json:"endIndex"` // inclusive
	Type            string  `json:"type"`     // activity type constant
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	AvgSpeedKmh     float64 `json:"avgSpeedKmh"`
	MaxSpeedKmh     float64 `json:"maxSpeedKmh"`
	Confidence      float64 `json:"confidence"` // 0-100
}
