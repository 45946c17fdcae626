package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/storage"
)

const alertLogTimeout = 5 * time.Second

// AlertLog records alerts after they are dispatched. It is never consulted
// when evaluating a station.
type AlertLog interface {
	RecordAlert(ctx context.Context, record *model.AlertRecord) error
}

// Observer receives evaluation outcomes, typically for metrics.
type Observer interface {
	ObserveEvaluation(state model.AlertState)
	ObserveEmptySeries()
}

// Monitor evaluates the latest reading of a station and dispatches alerts
// when the level leaves the normal range.
type Monitor struct {
	source     storage.ReadingSource
	dispatcher alerts.Dispatcher
	log        AlertLog
	observer   Observer
	clock      clockwork.Clock
	logger     *slog.Logger

	mu         sync.RWMutex
	thresholds Thresholds
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAlertLog records every raised alert to log.
func WithAlertLog(log AlertLog) Option {
	return func(m *Monitor) { m.log = log }
}

// WithObserver reports evaluation outcomes to o.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithClock overrides the clock used to stamp alerts.
func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// New creates a Monitor. The thresholds must be valid.
func New(source storage.ReadingSource, dispatcher alerts.Dispatcher, thresholds Thresholds, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		source:     source,
		dispatcher: dispatcher,
		thresholds: thresholds,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Thresholds returns the active thresholds.
func (m *Monitor) Thresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// SetThresholds replaces the active thresholds after validating them.
func (m *Monitor) SetThresholds(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
	m.logger.Info("thresholds updated", "low", t.Low, "high", t.High)
	return nil
}

// CheckStation evaluates the most recent reading of stationID. LOW and HIGH
// results are handed to the dispatcher once per call. A station with no
// readings yields *model.EmptySeriesError and nothing is sent.
func (m *Monitor) CheckStation(ctx context.Context, stationID string) (*model.Evaluation, error) {
	readings, err := m.source.StationReadings(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("load readings for %s: %w", stationID, err)
	}

	latest, err := model.Latest(stationID, readings)
	if err != nil {
		if m.observer != nil {
			m.observer.ObserveEmptySeries()
		}
		return nil, err
	}

	if math.IsNaN(latest.WaterLevel) {
		return nil, fmt.Errorf("station %s: latest water level is not a number", stationID)
	}

	t := m.Thresholds()
	state := t.Evaluate(latest.WaterLevel)
	eval := &model.Evaluation{
		StationID:     stationID,
		State:         state,
		Reading:       latest,
		LowThreshold:  t.Low,
		HighThreshold: t.High,
		Message:       FormatMessage(stationID, state, latest.WaterLevel),
	}
	if m.observer != nil {
		m.observer.ObserveEvaluation(state)
	}

	if state == model.StateNormal {
		return eval, nil
	}

	alert := alerts.Alert{
		ID:            uuid.New().String(),
		StationID:     stationID,
		State:         state,
		WaterLevel:    latest.WaterLevel,
		LowThreshold:  t.Low,
		HighThreshold: t.High,
		Message:       eval.Message,
		ObservedAt:    latest.Time,
		RaisedAt:      m.clock.Now().UTC(),
	}

	m.logger.Warn("water level out of range",
		"station", stationID,
		"state", state,
		"level", latest.WaterLevel,
		"low", t.Low,
		"high", t.High,
	)

	m.dispatcher.Dispatch(ctx, alert)
	eval.Notified = true

	if m.log != nil {
		record := &model.AlertRecord{
			ID:         alert.ID,
			StationID:  alert.StationID,
			State:      alert.State,
			WaterLevel: alert.WaterLevel,
			Message:    alert.Message,
			ObservedAt: alert.ObservedAt,
			RaisedAt:   alert.RaisedAt,
		}
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertLogTimeout)
		err := m.log.RecordAlert(logCtx, record)
		cancel()
		if err != nil {
			m.logger.Error("record alert", "station", stationID, "error", err)
		}
	}

	return eval, nil
}

// CheckAll evaluates every station once, in source order. Stations that fail
// to evaluate are logged and skipped.
func (m *Monitor) CheckAll(ctx context.Context) ([]model.Evaluation, error) {
	stations, err := m.source.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}

	var results []model.Evaluation
	for _, id := range stations {
		eval, err := m.CheckStation(ctx, id)
		if err != nil {
			m.logger.Error("check station", "station", id, "error", err)
			continue
		}
		results = append(results, *eval)
	}
	return results, nil
}
