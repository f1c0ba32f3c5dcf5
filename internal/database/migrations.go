package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents one schema step. Migrations are compiled in: the
// tracker runs on-device and cannot assume a migrations directory exists
// next to the binary.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_trips",
		SQL: `
			CREATE TABLE IF NOT EXISTS trips (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				is_manual INTEGER NOT NULL DEFAULT 0,
				start_time INTEGER NOT NULL,
				end_time INTEGER NOT NULL DEFAULT 0,
				duration_seconds INTEGER NOT NULL DEFAULT 0,
				distance_meters REAL NOT NULL DEFAULT 0,
				avg_speed_kmh REAL NOT NULL DEFAULT 0,
				max_speed_kmh REAL NOT NULL DEFAULT 0,
				elevation_gain_meters REAL NOT NULL DEFAULT 0,
				co2_saved_kg REAL NOT NULL DEFAULT 0,
				notes TEXT NOT NULL DEFAULT '',
				route_json TEXT NOT NULL DEFAULT '',
				sync_state TEXT NOT NULL DEFAULT 'unsynced',
				backend_id INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_trips_status ON trips(status);
			CREATE INDEX IF NOT EXISTS idx_trips_sync_state ON trips(sync_state);
			CREATE INDEX IF NOT EXISTS idx_trips_start_time ON trips(start_time);
		`,
	},
	{
		Version: 2,
		Name:    "create_location_points",
		SQL: `
			CREATE TABLE IF NOT EXISTS location_points (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				trip_id TEXT NOT NULL REFERENCES trips(id),
				latitude REAL NOT NULL,
				longitude REAL NOT NULL,
				altitude REAL,
				accuracy_m REAL,
				speed_mps REAL NOT NULL DEFAULT 0,
				heading_deg REAL,
				timestamp INTEGER NOT NULL,
				activity_type TEXT NOT NULL DEFAULT '',
				activity_confidence INTEGER NOT NULL DEFAULT 0,
				sync_state TEXT NOT NULL DEFAULT 'unsynced'
			);
			CREATE INDEX IF NOT EXISTS idx_location_points_trip
				ON location_points(trip_id, timestamp);
		`,
	},
}

// initMigrationsTable creates the migrations tracking table
func initMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// appliedMigrations returns the set of applied migration versions
func appliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, nil
}

// applyMigration applies a single migration inside a transaction
func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	log.Printf("[Database] Applied migration %d: %s", migration.Version, migration.Name)
	return nil
}

// RunMigrations applies all pending schema migrations
func RunMigrations(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := applyMigration(db, migration); err != nil {
			return err
		}
	}

	return nil
}
