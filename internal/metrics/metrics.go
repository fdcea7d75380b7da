// Package metrics provides Prometheus instruments for the acquisition and
// delivery pipeline and the ops HTTP server exposing them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No chat or session identifiers in labels.

var (
	// SessionsTotal counts finished sessions by outcome (taxonomy kind or "success")
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbot_sessions_total",
		Help: "Total number of finished sessions, by outcome.",
	}, []string{"outcome"})

	// AcquisitionsTotal counts acquisitions by back end, plan kind and result
	AcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbot_acquisitions_total",
		Help: "Total number of acquisitions, by backend, plan kind and result.",
	}, []string{"backend", "plan", "result"})

	// DeliveryAttemptsTotal counts transport calls by result
	DeliveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbot_delivery_attempts_total",
		Help: "Total number of delivery attempts, by result (ok/transient/permanent).",
	}, []string{"result"})

	// PartsSentTotal counts delivered split parts
	PartsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytbot_parts_sent_total",
		Help: "Total number of split parts delivered.",
	})

	// StageDuration observes the time spent in each pipeline stage
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytbot_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	// ActiveAcquisitions tracks sessions between selection and terminal state
	ActiveAcquisitions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytbot_active_acquisitions",
		Help: "Current number of sessions acquiring, merging or delivering.",
	})
)

// RecordSession increments the session counter for outcome
func RecordSession(outcome string) {
	SessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAcquisition increments the acquisition counter
func RecordAcquisition(backend, plan, result string) {
	AcquisitionsTotal.WithLabelValues(backend, plan, result).Inc()
}

// RecordDeliveryAttempt increments the delivery attempt counter
func RecordDeliveryAttempt(result string) {
	DeliveryAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveStage records the time elapsed since start for stage
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
