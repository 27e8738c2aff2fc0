// Package metrics defines the Prometheus collectors exported by the
// tagfiler service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagfiler_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagfiler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagfiler_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog store metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagfiler_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagfiler_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagfiler_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Reconciler metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagfiler_scan_runs_total",
			Help: "Total number of reconciliation runs",
		},
	)

	ScanShortCircuitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagfiler_scan_short_circuits_total",
			Help: "Reconciliation runs skipped by the count+mtime fingerprint check",
		},
	)

	ScanBusyRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagfiler_scan_busy_rejections_total",
			Help: "Reconciliation requests rejected because a scan was already running",
		},
	)

	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagfiler_scan_files_processed_total",
			Help: "Total number of files upserted by the reconciler",
		},
	)

	ScanFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagfiler_scan_files_skipped_total",
			Help: "Files skipped during reconciliation due to per-file errors",
		},
	)

	ScanFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagfiler_scan_files_removed_total",
			Help: "Catalog rows removed because the file no longer exists on disk",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagfiler_scan_last_run_timestamp",
			Help: "Timestamp of the last reconciliation run",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagfiler_scan_last_run_duration_seconds",
			Help: "Duration of the last reconciliation run in seconds",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tagfiler_scan_running",
			Help: "Whether a reconciliation is currently running (1 = running, 0 = idle)",
		},
	)
)
