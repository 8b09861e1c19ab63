// Package metrics provides Prometheus metrics for the catalog server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// External archival system calls
	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographer_external_calls_total",
			Help: "Total number of calls made to the external archival system",
		},
		[]string{"operation", "status"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartographer_external_call_duration_seconds",
			Help:    "Duration of calls to the external archival system",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Catalog writes
	TombstonesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographer_tombstones_written_total",
			Help: "Total number of deletion records written",
		},
		[]string{"kind"},
	)

	CountRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographer_count_refreshes_total",
			Help: "Total number of cached child count refreshes",
		},
		[]string{"status"},
	)

	// Publish propagation
	Propagations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographer_propagations_total",
			Help: "Total number of publish propagation runs",
		},
		[]string{"status"},
	)

	PropagatedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartographer_propagated_records_total",
			Help: "Total number of external records updated by publish propagation",
		},
	)

	// HTTP surface
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographer_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartographer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordExternalCall records one call to the external archival system.
func RecordExternalCall(operation string, err error, duration time.Duration) {
	ExternalCallsTotal.WithLabelValues(operation, Status(err)).Inc()
	ExternalCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
