package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements Storage on an SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at dbPath and applies migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveReadings(ctx context.Context, readings []model.Reading) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO readings (station_id, datetime, water_level, lat, lon)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(station_id, datetime) DO UPDATE SET
		   water_level = excluded.water_level,
		   lat = excluded.lat,
		   lon = excluded.lon`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.StationID, r.Time.UTC(), r.WaterLevel, r.Lat, r.Lon); err != nil {
			return 0, fmt.Errorf("insert reading %s@%s: %w", r.StationID, r.Time.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(readings), nil
}

func (s *SQLite) Stations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station_id FROM readings GROUP BY station_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	var stations []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		stations = append(stations, id)
	}
	return stations, rows.Err()
}

func (s *SQLite) StationReadings(ctx context.Context, stationID string) ([]model.Reading, error) {
	return s.queryReadings(ctx, "WHERE station_id = ?", stationID)
}

func (s *SQLite) AllReadings(ctx context.Context) ([]model.Reading, error) {
	return s.queryReadings(ctx, "")
}

func (s *SQLite) queryReadings(ctx context.Context, where string, args ...any) ([]model.Reading, error) {
	query := "SELECT station_id, datetime, water_level, lat, lon FROM readings"
	if where != "" {
		query += " " + where
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	readings := []model.Reading{}
	for rows.Next() {
		var r model.Reading
		if err := rows.Scan(&r.StationID, &r.Time, &r.WaterLevel, &r.Lat, &r.Lon); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *SQLite) RecordAlert(ctx context.Context, record *model.AlertRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.RaisedAt.IsZero() {
		record.RaisedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_log (id, station_id, state, water_level, message, observed_at, raised_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.StationID, string(record.State), record.WaterLevel,
		record.Message, record.ObservedAt.UTC(), record.RaisedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert record: %w", err)
	}
	return nil
}

func (s *SQLite) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.AlertRecord, error) {
	query := "SELECT id, station_id, state, water_level, message, observed_at, raised_at FROM alert_log"

	var conditions []string
	var args []any
	if filter.StationID != "" {
		conditions = append(conditions, "station_id = ?")
		args = append(args, filter.StationID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "raised_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY raised_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	records := []model.AlertRecord{}
	for rows.Next() {
		var r model.AlertRecord
		var state string
		if err := rows.Scan(&r.ID, &r.StationID, &state, &r.WaterLevel, &r.Message, &r.ObservedAt, &r.RaisedAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		r.State = model.AlertState(state)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) PruneAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM alert_log WHERE raised_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune alerts: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
