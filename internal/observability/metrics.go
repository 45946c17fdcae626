package observability

import (
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for evaluation and alert delivery.
type Metrics struct {
	Evaluations   *prometheus.CounterVec // labels: state={LOW,HIGH,NORMAL}
	EmptySeries   prometheus.Counter
	Notifications *prometheus.CounterVec // labels: channel, outcome={success,failure}
	Dropped       prometheus.Counter
	QueueDepth    prometheus.Gauge
	ThresholdLow  prometheus.Gauge
	ThresholdHigh prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwlr",
			Name:      "evaluations_total",
			Help:      "Station evaluations by resulting alert state.",
		}, []string{"state"}),
		EmptySeries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dwlr",
			Name:      "empty_series_total",
			Help:      "Evaluations requested for stations without readings.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwlr",
			Name:      "notifications_total",
			Help:      "Alert delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dwlr",
			Name:      "dispatch_dropped_total",
			Help:      "Alerts dropped because the dispatch queue was full or closed.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dwlr",
			Name:      "dispatch_queue_depth",
			Help:      "Alerts waiting in the dispatch queue.",
		}),
		ThresholdLow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dwlr",
			Name:      "threshold_low_meters",
			Help:      "Active low water level threshold.",
		}),
		ThresholdHigh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dwlr",
			Name:      "threshold_high_meters",
			Help:      "Active high water level threshold.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Evaluations,
		m.EmptySeries,
		m.Notifications,
		m.Dropped,
		m.QueueDepth,
		m.ThresholdLow,
		m.ThresholdHigh,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build
// several without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) ObserveEvaluation(state model.AlertState) {
	m.Evaluations.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) ObserveEmptySeries() {
	m.EmptySeries.Inc()
}

// DeliveryHook returns an alerts.ResultHook that counts delivery outcomes.
func (m *Metrics) DeliveryHook() alerts.ResultHook {
	return func(channel string, err error) {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		m.Notifications.WithLabelValues(channel, outcome).Inc()
	}
}

// ObserveDrop counts a dropped alert.
func (m *Metrics) ObserveDrop(alerts.Alert) {
	m.Dropped.Inc()
}

// ObserveQueueDepth records the current queue length.
func (m *Metrics) ObserveQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// SetThresholds publishes the active thresholds.
func (m *Metrics) SetThresholds(low, high float64) {
	m.ThresholdLow.Set(low)
	m.ThresholdHigh.Set(high)
}
