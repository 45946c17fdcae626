package model

import (
	"fmt"
	"time"
)

// Reading is a single water level sample reported by a DWLR station.
type Reading struct {
	StationID  string    `json:"station_id" db:"station_id"`
	Time       time.Time `json:"datetime" db:"datetime"`
	WaterLevel float64   `json:"water_level" db:"water_level"`
	Lat        float64   `json:"lat" db:"lat"`
	Lon        float64   `json:"lon" db:"lon"`
}

// AlertState classifies a water level against the configured thresholds.
type AlertState string

const (
	StateLow    AlertState = "LOW"
	StateHigh   AlertState = "HIGH"
	StateNormal AlertState = "NORMAL"
)

// Evaluation is the outcome of checking the latest reading of a station.
type Evaluation struct {
	StationID     string     `json:"station_id"`
	State         AlertState `json:"state"`
	Reading       Reading    `json:"reading"`
	LowThreshold  float64    `json:"low_threshold"`
	HighThreshold float64    `json:"high_threshold"`
	Message       string     `json:"message"`
	Notified      bool       `json:"notified"`
}

// AlertRecord is an audit entry for an alert that was handed to dispatch.
type AlertRecord struct {
	ID         string     `json:"id" db:"id"`
	StationID  string     `json:"station_id" db:"station_id"`
	State      AlertState `json:"state" db:"state"`
	WaterLevel float64    `json:"water_level" db:"water_level"`
	Message    string     `json:"message" db:"message"`
	ObservedAt time.Time  `json:"observed_at" db:"observed_at"`
	RaisedAt   time.Time  `json:"raised_at" db:"raised_at"`
}

// AlertFilter controls which alert records are returned from the log.
type AlertFilter struct {
	StationID string    `json:"station_id,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// EmptySeriesError reports a station that has no readings.
type EmptySeriesError struct {
	StationID string
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("station %q has no readings", e.StationID)
}

// Latest returns the reading with the greatest timestamp. When several
// readings share that timestamp the last one in input order wins.
func Latest(stationID string, readings []Reading) (Reading, error) {
	if len(readings) == 0 {
		return Reading{}, &EmptySeriesError{StationID: stationID}
	}

	latest := readings[0]
	for _, r := range readings[1:] {
		if !r.Time.Before(latest.Time) {
			latest = r
		}
	}
	return latest, nil
}
