package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Computation status labels.
const (
	StatusOK           = "ok"
	StatusInvalidInput = "invalid_input"
	StatusError        = "error"
)

var (
	// Computations counts paydown computations by outcome.
	Computations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydown_computations_total",
			Help: "Paydown computations by status",
		},
		[]string{"status"},
	)

	// CacheLookups counts memo lookups by result.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydown_cache_lookups_total",
			Help: "Memoized schedule lookups",
		},
		[]string{"result"},
	)

	// EventDiagnostics counts payment records that could not be used as given.
	EventDiagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paydown_event_diagnostics_total",
			Help: "Payment record problems found during normalization",
		},
		[]string{"field", "dropped"},
	)

	// ComputeDuration observes the time spent per computation.
	ComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paydown_compute_duration_seconds",
			Help:    "Time spent computing one paydown",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
)
