package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_operations_total",
			Help: "Calendar mirror operations by outcome",
		},
		[]string{"operation", "status"}, // operation: export, delete
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_token_refreshes_total",
			Help: "OAuth access token refresh attempts",
		},
		[]string{"result"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calendar_provider_call_duration_seconds",
			Help:    "Calendar provider call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"operation", "status"},
	)

	PulseRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_sync_pulse_total",
			Help: "Background sync pulse ticks by outcome",
		},
		[]string{"outcome"}, // started, deferred, coalesced
	)
)

func recordSync(operation string, status SyncStatus) {
	SyncOperations.WithLabelValues(operation, string(status)).Inc()
}

// recordProviderCall is deferred with a pointer to the caller's named error result.
func recordProviderCall(operation string, started time.Time, errp *error) {
	status := "ok"
	if errp != nil && *errp != nil {
		status = "error"
	}
	ProviderCallDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
