package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbindex_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbindex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbindex_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbindex_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbindex_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbindex_indexer_runs_total",
			Help: "Total number of reindex runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_indexer_last_run_timestamp",
			Help: "Timestamp of the last reindex run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_indexer_last_run_duration_seconds",
			Help: "Duration of the last reindex run in seconds",
		},
	)

	IndexerRecordsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbindex_indexer_records_processed_total",
			Help: "Total number of thumbnail entries indexed",
		},
	)

	IndexerEntriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbindex_indexer_entries_skipped_total",
			Help: "Total number of cache entries skipped (empty payload)",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbindex_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_indexer_running",
			Help: "Whether a reindex is currently running (1 = running, 0 = idle)",
		},
	)
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbindex_exports_total",
			Help: "Total number of export requests",
		},
		[]string{"kind", "status"}, // kind: "single", "archive"
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbindex_export_duration_seconds",
			Help:    "Export duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ExportArchiveBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbindex_export_archive_bytes",
			Help:    "Size of exported zip archives in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)

// Normalizer metrics
var (
	NormalizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbindex_normalize_total",
			Help: "Total number of payload normalizations",
		},
		[]string{"outcome"}, // "png", "passthrough"
	)

	ImageDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbindex_image_decode_total",
			Help: "Payload image decodes by detected format",
		},
		[]string{"format"},
	)
)

// Store content metrics, refreshed by the Collector
var (
	RecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_records_total",
			Help: "Total number of indexed thumbnail records",
		},
	)

	RecordsBySize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thumbindex_records_by_cache_size",
			Help: "Indexed records by cache size class",
		},
		[]string{"cache_size"},
	)

	RecordDataBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbindex_record_data_bytes",
			Help: "Total bytes of stored thumbnail payloads",
		},
	)
)

// AppInfo exposes build information as labels
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "thumbindex_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
