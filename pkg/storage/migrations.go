package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// 1: readings
	`CREATE TABLE IF NOT EXISTS readings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id  TEXT NOT NULL,
		datetime    DATETIME NOT NULL,
		water_level REAL NOT NULL,
		lat         REAL NOT NULL DEFAULT 0.0,
		lon         REAL NOT NULL DEFAULT 0.0,
		UNIQUE(station_id, datetime)
	);

	CREATE INDEX IF NOT EXISTS idx_readings_station ON readings(station_id);`,

	// 2: alert log
	`CREATE TABLE IF NOT EXISTS alert_log (
		id          TEXT PRIMARY KEY,
		station_id  TEXT NOT NULL,
		state       TEXT NOT NULL CHECK(state IN ('LOW', 'HIGH')),
		water_level REAL NOT NULL,
		message     TEXT NOT NULL,
		observed_at DATETIME NOT NULL,
		raised_at   DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alert_log_station ON alert_log(station_id);
	CREATE INDEX IF NOT EXISTS idx_alert_log_raised ON alert_log(raised_at);`,
}

// runMigrations applies pending schema migrations in order.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}
