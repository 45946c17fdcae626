package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/dataset"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 10 * time.Second

// AlertHistory lists recorded alerts.
type AlertHistory interface {
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.AlertRecord, error)
}

// Server exposes station data, evaluations and the alert log over HTTP.
type Server struct {
	monitor *monitor.Monitor
	source  storage.ReadingSource
	history AlertHistory
	mux     *http.ServeMux
	logger  *slog.Logger

	corsOrigins []string
	accessLog   io.Writer
	metrics     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithAlertHistory enables GET /api/v1/alerts.
func WithAlertHistory(h AlertHistory) Option {
	return func(s *Server) { s.history = h }
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithAccessLog writes Apache-style access logs to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

// WithMetricsHandler overrides the handler mounted at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates an API server.
func NewServer(mon *monitor.Monitor, source storage.ReadingSource, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		monitor: mon,
		source:  source,
		mux:     http.NewServeMux(),
		logger:  logger,
		metrics: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics)
	s.mux.HandleFunc("GET /api/v1/thresholds", s.handleThresholds)
	s.mux.HandleFunc("GET /api/v1/stations", s.handleStations)
	s.mux.HandleFunc("GET /api/v1/stations/{id}/readings", s.handleReadings)
	s.mux.HandleFunc("GET /api/v1/stations/{id}/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/stations/{id}/export", s.handleExport)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/v1/alerts", s.handleAlerts)
}

// Handler returns the HTTP handler with panic recovery and CORS applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux

	if len(s.corsOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.corsOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		)(h)
	}

	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)

	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleThresholds(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Thresholds())
}

type stationView struct {
	StationID   string           `json:"station_id"`
	Lat         float64          `json:"lat"`
	Lon         float64          `json:"lon"`
	LatestLevel float64          `json:"latest_level"`
	LatestAt    time.Time        `json:"latest_at"`
	Average     float64          `json:"average_level"`
	State       model.AlertState `json:"state"`
	Readings    int              `json:"readings"`
}

// handleStations lists every station with its latest reading and state.
// It is a display view and never triggers notifications.
func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	readings, err := s.source.AllReadings(ctx)
	if err != nil {
		s.internalError(w, "list readings", err)
		return
	}

	t := s.monitor.Thresholds()
	views := []stationView{}
	for _, st := range model.Summarize(readings) {
		views = append(views, stationView{
			StationID:   st.StationID,
			Lat:         st.Lat,
			Lon:         st.Lon,
			LatestLevel: st.LatestLevel,
			LatestAt:    st.LatestAt,
			Average:     st.Mean,
			State:       t.Evaluate(st.LatestLevel),
			Readings:    st.Count,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := r.PathValue("id")
	readings, err := s.source.StationReadings(ctx, id)
	if err != nil {
		s.internalError(w, "station readings", err)
		return
	}
	if len(readings) == 0 {
		s.writeError(w, http.StatusNotFound, (&model.EmptySeriesError{StationID: id}).Error())
		return
	}
	s.writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	eval, err := s.monitor.CheckStation(ctx, r.PathValue("id"))
	if err != nil {
		var empty *model.EmptySeriesError
		if errors.As(err, &empty) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, "check station", err)
		return
	}
	s.writeJSON(w, http.StatusOK, eval)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := r.PathValue("id")
	readings, err := s.source.StationReadings(ctx, id)
	if err != nil {
		s.internalError(w, "station readings", err)
		return
	}
	if len(readings) == 0 {
		s.writeError(w, http.StatusNotFound, (&model.EmptySeriesError{StationID: id}).Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": dataset.ExportFilename(id),
	}))
	if err := dataset.WriteCSV(w, readings); err != nil {
		s.logger.Error("export csv", "station", id, "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	readings, err := s.source.AllReadings(ctx)
	if err != nil {
		s.internalError(w, "list readings", err)
		return
	}
	stats := model.Summarize(readings)
	if stats == nil {
		stats = []model.StationStats{}
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotImplemented, "alert history is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	filter := model.AlertFilter{
		StationID: r.URL.Query().Get("station"),
		Limit:     100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := dataset.ParseTime(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Since = since
	}

	records, err := s.history.ListAlerts(ctx, filter)
	if err != nil {
		s.internalError(w, "list alerts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
