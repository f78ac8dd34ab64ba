// Package metrics provides Prometheus metrics for ember — counters,
// gauges, and histograms for decisions, aborts, checkpoints, and
// sensor health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Decisions ──────────────────────────────────────────────────────────────

// Decisions tracks scheduling verdicts by outcome.
var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ember",
	Name:      "decisions_total",
	Help:      "Total scheduling decisions by verdict.",
}, []string{"verdict"})

// ForecastPeak tracks predicted peak temperatures.
var ForecastPeak = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ember",
	Name:      "forecast_peak_celsius",
	Help:      "Predicted peak temperature per pre-flight forecast.",
	Buckets:   []float64{40, 50, 60, 70, 80, 90, 100, 120},
})

// ─── Supervision ────────────────────────────────────────────────────────────

// Aborts tracks emergency aborts by trigger reason.
var Aborts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ember",
	Name:      "aborts_total",
	Help:      "Total emergency aborts by reason.",
}, []string{"reason"})

// MonitorsActive tracks currently supervised tasks.
var MonitorsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ember",
	Name:      "monitors_active",
	Help:      "Number of tasks currently under thermal supervision.",
})

// AlertsRaised tracks alert-threshold crossings that did not abort.
var AlertsRaised = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ember",
	Name:      "alerts_raised_total",
	Help:      "Total alert-threshold crossings during supervision.",
})

// ─── Checkpoints ────────────────────────────────────────────────────────────

// CheckpointSaves tracks checkpoint writes by reason.
var CheckpointSaves = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ember",
	Name:      "checkpoint_saves_total",
	Help:      "Total checkpoint snapshots persisted, by reason.",
}, []string{"reason"})

// ─── Sensors ────────────────────────────────────────────────────────────────

// SensorFailures tracks failed temperature reads.
var SensorFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ember",
	Name:      "sensor_failures_total",
	Help:      "Total failed temperature sensor reads.",
})
