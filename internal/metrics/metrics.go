// Package metrics holds the Prometheus collectors for the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "welltie"

// Operation labels
const (
	OpAlign = "align"
	OpScan  = "scan"
	OpAudit = "audit"
)

var (
	// operationDuration measures align, scan, and audit runs.
	// Labels: operation, status (ok, error, canceled)
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "operation_duration_seconds",
		Help:      "Duration of engine operations in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation", "status"})

	// busyRejections counts re-entry attempts refused by a busy guard.
	busyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "busy_rejections_total",
		Help:      "Operations rejected because the same operation was already running",
	}, []string{"operation"})

	anomaliesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "anomaly",
		Name:      "found_total",
		Help:      "Anomalies emitted by scans and audits",
	}, []string{"kind", "severity"})

	offsetCommits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offset",
		Name:      "commits_total",
		Help:      "Stable offset commits",
	})

	stableOffset = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "offset",
		Name:      "stable_meters",
		Help:      "Current stable depth offset in meters",
	})

	correlation = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "fit",
		Name:      "correlation",
		Help:      "Correlation of the current combined dataset",
	})
)

// ObserveOperation records one operation run
func ObserveOperation(op, status string, d time.Duration) {
	operationDuration.WithLabelValues(op, status).Observe(d.Seconds())
}

// BusyRejected counts one refused re-entry
func BusyRejected(op string) {
	busyRejections.WithLabelValues(op).Inc()
}

// AnomalyFound counts one emitted anomaly
func AnomalyFound(kind, severity string) {
	anomaliesFound.WithLabelValues(kind, severity).Inc()
}

// OffsetCommitted records a stable offset commit
func OffsetCommitted(v float64) {
	offsetCommits.Inc()
	stableOffset.Set(v)
}

// FitCorrelation records the latest correlation
func FitCorrelation(r float64) {
	correlation.Set(r)
}

// Status maps an operation error to a status label
func Status(err error, canceled bool) string {
	switch {
	case canceled:
		return "canceled"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}
