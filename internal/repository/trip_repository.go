package repository

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/greentrack/greentrack-go/internal/models"
)

// TripRepository handles database operations for trips
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `id, user_id, type, status, is_manual,
	start_time, end_time, duration_seconds,
	distance_meters, avg_speed_kmh, max_speed_kmh,
	elevation_gain_meters, co2_saved_kg,
	notes, route_json, sync_state, backend_id,
	created_at, updated_at`

// updatableTripColumns is the allow-list for partial updates. Dynamic SET
// clauses must never interpolate caller-supplied column names directly.
var updatableTripColumns = map[string]bool{
	"type":                  true,
	"status":                true,
	"is_manual":             true,
	"start_time":            true,
	"end_time":              true,
	"duration_seconds":      true,
	"distance_meters":       true,
	"avg_speed_kmh":         true,
	"max_speed_kmh":         true,
	"elevation_gain_meters": true,
	"co2_saved_kg":          true,
	"notes":                 true,
	"route_json":            true,
	"sync_state":            true,
	"backend_id":            true,
}

// CreateTrip inserts a new trip
func (r *TripRepository) CreateTrip(trip *models.Trip) error {
	query := `
		INSERT INTO trips (
			id, user_id, type, status, is_manual,
			start_time, end_time, duration_seconds,
			distance_meters, avg_speed_kmh, max_speed_kmh,
			elevation_gain_meters, co2_saved_kg,
			notes, route_json, sync_state, backend_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		trip.ID,
		trip.UserID,
		trip.Type,
		trip.Status,
		trip.IsManual,
		trip.StartTime,
		trip.EndTime,
		trip.DurationSeconds,
		trip.DistanceMeters,
		trip.AvgSpeedKmh,
		trip.MaxSpeedKmh,
		trip.ElevationGainMeters,
		trip.CO2SavedKg,
		trip.Notes,
		trip.RouteJSON,
		trip.SyncState,
		trip.BackendID,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	return nil
}

// UpdateTripFields applies a partial update. Unknown column names are
// rejected.
func (r *TripRepository) UpdateTripFields(id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	columns := make([]string, 0, len(fields))
	for col := range fields {
		if !updatableTripColumns[col] {
			return fmt.Errorf("column %q is not updatable", col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	setClauses := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+1)
	for _, col := range columns {
		setClauses = append(setClauses, col+" = ?")
		args = append(args, fields[col])
	}
	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := "UPDATE trips SET " + strings.Join(setClauses, ", ") + " WHERE id = ?"
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("trip not found: %s", id)
	}
	return nil
}

// GetActiveTrip returns the non-terminal trip, or nil when none exists. The
// lifecycle guarantees at most one.
func (r *TripRepository) GetActiveTrip() (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips
		WHERE status IN (?, ?) ORDER BY start_time DESC LIMIT 1`

	trip, err := r.scanOne(r.db.QueryRow(query, models.TripStatusActive, models.TripStatusPaused))
	if err != nil {
		return nil, fmt.Errorf("failed to get active trip: %w", err)
	}
	return trip, nil
}

// GetTripByID retrieves a single trip by ID, nil when not found
func (r *TripRepository) GetTripByID(id string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`

	trip, err := r.scanOne(r.db.QueryRow(query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// GetTrips retrieves trips with filtering and pagination
func (r *TripRepository) GetTrips(filter models.TripFilter) ([]models.Trip, int64, error) {
	query := `SELECT ` + tripColumns + ` FROM trips`

	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SyncState != "" {
		conditions = append(conditions, "sync_state = ?")
		args = append(args, filter.SyncState)
	}
	if filter.StartTime > 0 {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, filter.EndTime)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM trips"
	if len(conditions) > 0 {
		countQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	if filter.PageSize > 500 {
		filter.PageSize = 500
	}

	offset := (filter.Page - 1) * filter.PageSize
	query += " ORDER BY start_time DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := r.scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}

	return trips, total, nil
}

// GetUnsyncedTrips returns completed trips pending upload, oldest first
func (r *TripRepository) GetUnsyncedTrips() ([]models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips
		WHERE sync_state = ? AND status = ?
		ORDER BY start_time ASC`

	rows, err := r.db.Query(query, models.SyncStateUnsynced, models.TripStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := r.scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}

	return trips, nil
}

// DeleteTrip removes a trip and its location points
func (r *TripRepository) DeleteTrip(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM location_points WHERE trip_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete trip points: %w", err)
	}

	result, err := tx.Exec("DELETE FROM trips WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("trip not found: %s", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *TripRepository) scanOne(row *sql.Row) (*models.Trip, error) {
	t, err := r.scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TripRepository) scanTrip(row rowScanner) (models.Trip, error) {
	var t models.Trip
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Status, &t.IsManual,
		&t.StartTime, &t.EndTime, &t.DurationSeconds,
		&t.DistanceMeters, &t.AvgSpeedKmh, &t.MaxSpeedKmh,
		&t.ElevationGainMeters, &t.CO2SavedKg,
		&t.Notes, &t.RouteJSON, &t.SyncState, &t.BackendID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}
