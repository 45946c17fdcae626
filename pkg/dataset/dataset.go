// Package dataset loads DWLR readings from CSV and serves them from memory.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
)

var columns = []string{"station_id", "datetime", "water_level", "lat", "lon"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Dataset is an immutable, in-memory set of readings.
type Dataset struct {
	readings []model.Reading
	stations []string
	byID     map[string][]model.Reading
}

// New indexes readings by station, preserving input order.
func New(readings []model.Reading) *Dataset {
	d := &Dataset{
		readings: readings,
		byID:     make(map[string][]model.Reading),
	}
	for _, r := range readings {
		if _, ok := d.byID[r.StationID]; !ok {
			d.stations = append(d.stations, r.StationID)
		}
		d.byID[r.StationID] = append(d.byID[r.StationID], r)
	}
	return d
}

// Load reads a CSV file from path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}

// Parse reads CSV with a header row naming station_id, datetime,
// water_level, lat and lon in any order. Extra columns are ignored.
func Parse(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	pos := make([]int, len(columns))
	for i, name := range columns {
		p, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		pos[i] = p
	}

	var readings []model.Reading
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		reading, err := parseRecord(rec, pos)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}

	return New(readings), nil
}

func parseRecord(rec []string, pos []int) (model.Reading, error) {
	field := func(i int) (string, error) {
		if pos[i] >= len(rec) {
			return "", fmt.Errorf("missing %s", columns[i])
		}
		return strings.TrimSpace(rec[pos[i]]), nil
	}

	var r model.Reading
	id, err := field(0)
	if err != nil {
		return r, err
	}
	if id == "" {
		return r, errors.New("empty station_id")
	}
	r.StationID = id

	ts, err := field(1)
	if err != nil {
		return r, err
	}
	if r.Time, err = ParseTime(ts); err != nil {
		return r, err
	}

	floats := []*float64{&r.WaterLevel, &r.Lat, &r.Lon}
	for i, dst := range floats {
		raw, err := field(i + 2)
		if err != nil {
			return r, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return r, fmt.Errorf("invalid %s %q", columns[i+2], raw)
		}
		*dst = v
	}
	return r, nil
}

// ParseTime accepts RFC 3339 and common ISO 8601 date-time layouts.
// Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

func (d *Dataset) Stations(context.Context) ([]string, error) {
	return append([]string(nil), d.stations...), nil
}

func (d *Dataset) StationReadings(_ context.Context, stationID string) ([]model.Reading, error) {
	return append([]model.Reading{}, d.byID[stationID]...), nil
}

func (d *Dataset) AllReadings(context.Context) ([]model.Reading, error) {
	return append([]model.Reading{}, d.readings...), nil
}

// Len returns the number of readings.
func (d *Dataset) Len() int {
	return len(d.readings)
}
