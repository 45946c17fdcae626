package storage

import (
	"context"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
)

// ReadingSource provides read access to station readings.
type ReadingSource interface {
	// Stations returns station IDs in the order they first appear.
	Stations(ctx context.Context) ([]string, error)

	// StationReadings returns the readings of one station in input order.
	// An unknown station yields an empty slice.
	StationReadings(ctx context.Context, stationID string) ([]model.Reading, error)

	// AllReadings returns every reading in input order.
	AllReadings(ctx context.Context) ([]model.Reading, error)
}

// Storage is the persistence layer for imported readings and the alert log.
type Storage interface {
	ReadingSource

	// SaveReadings inserts readings, replacing any with the same station and
	// timestamp. It returns the number of rows written.
	SaveReadings(ctx context.Context, readings []model.Reading) (int, error)

	// RecordAlert appends an entry to the alert log.
	RecordAlert(ctx context.Context, record *model.AlertRecord) error

	// ListAlerts returns alert log entries, newest first.
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.AlertRecord, error)

	// PruneAlerts deletes alert log entries raised before cutoff.
	PruneAlerts(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources.
	Close() error
}
