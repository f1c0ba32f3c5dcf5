package repository

import (
	"database/sql"
	"fmt"

	"github.com/greentrack/greentrack-go/internal/models"
)

// LocationRepository handles database operations for trip location points
type LocationRepository struct {
	db *sql.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// AppendLocation inserts one point for an active trip
func (r *LocationRepository) AppendLocation(point *models.LocationPoint) error {
	query := `
		INSERT INTO location_points (
			trip_id, latitude, longitude, altitude, accuracy_m,
			speed_mps, heading_deg, timestamp,
			activity_type, activity_confidence, sync_state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		point.TripID,
		point.Latitude,
		point.Longitude,
		point.Altitude,
		point.AccuracyMeters,
		point.SpeedMps,
		point.HeadingDegrees,
		point.Timestamp,
		point.ActivityType,
		point.ActivityConfidence,
		point.SyncState,
	)
	if err != nil {
		return fmt.Errorf("failed to append location point: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	point.ID = id
	return nil
}

// GetLocationsByTrip returns a trip's points in timestamp order
func (r *LocationRepository) GetLocationsByTrip(tripID string) ([]models.LocationPoint, error) {
	query := `
		SELECT id, trip_id, latitude, longitude, altitude, accuracy_m,
			   speed_mps, heading_deg, timestamp,
			   activity_type, activity_confidence, sync_state
		FROM location_points
		WHERE trip_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.Query(query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query location points: %w", err)
	}
	defer rows.Close()

	var points []models.LocationPoint
	for rows.Next() {
		var p models.LocationPoint
		err := rows.Scan(
			&p.ID, &p.TripID, &p.Latitude, &p.Longitude, &p.Altitude, &p.AccuracyMeters,
			&p.SpeedMps, &p.HeadingDegrees, &p.Timestamp,
			&p.ActivityType, &p.ActivityConfidence, &p.SyncState,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location point: %w", err)
		}
		points = append(points, p)
	}

	return points, nil
}

// CountByTrip returns the number of points stored for a trip
func (r *LocationRepository) CountByTrip(tripID string) (int64, error) {
	var count int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM location_points WHERE trip_id = ?", tripID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count location points: %w", err)
	}
	return count, nil
}

// DeleteLocationsByTrip removes all points of a trip
func (r *LocationRepository) DeleteLocationsByTrip(tripID string) error {
	if _, err := r.db.Exec("DELETE FROM location_points WHERE trip_id = ?", tripID); err != nil {
		return fmt.Errorf("failed to delete location points: %w", err)
	}
	return nil
}
