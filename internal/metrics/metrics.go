// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes the service's Prometheus instrumentation:
// outbound sync deliveries, reconciliation sweeps, database queries,
// and API endpoint latency. All collectors register themselves with the
// default registry via promauto and are served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync delivery metrics. Result is "success", "transport_error",
	// "remote_rejected", "malformed_response" or "not_configured".
	SyncDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bss_sync_deliveries_total",
			Help: "Total outbound user sync delivery attempts by result",
		},
		[]string{"result"},
	)

	SyncSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bss_sync_sweep_duration_seconds",
			Help:    "Duration of full reconciliation sweeps in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SyncPendingRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bss_sync_pending_records",
			Help: "Number of sync records awaiting delivery after the last sweep",
		},
	)

	SyncDeletionNoticesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bss_sync_deletion_notices_total",
			Help: "Total one-shot deletion notices by result",
		},
		[]string{"result"},
	)

	// Database metrics.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bss_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bss_db_query_errors_total",
			Help: "Total DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API endpoint metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bss_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bss_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Profile update metrics. Outcome is "applied" or a warning code.
	ProfileEditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bss_profile_edits_total",
			Help: "Total profile edit items by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordDelivery counts one outbound delivery attempt.
func RecordDelivery(result string) {
	SyncDeliveriesTotal.WithLabelValues(result).Inc()
}

// RecordSweep records the duration of one reconciliation sweep and the
// number of records still pending when it finished.
func RecordSweep(duration time.Duration, pending int) {
	SyncSweepDuration.Observe(duration.Seconds())
	SyncPendingRecords.Set(float64(pending))
}

// RecordDeletionNotice counts one deletion notice attempt.
func RecordDeletionNotice(result string) {
	SyncDeletionNoticesTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records the duration (and failure, if any) of one query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProfileEdit counts one profile edit item by its outcome.
func RecordProfileEdit(outcome string) {
	ProfileEditsTotal.WithLabelValues(outcome).Inc()
}
