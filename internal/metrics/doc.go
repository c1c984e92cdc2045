// Package metrics provides Prometheus instrumentation for the thumbcache
// indexer.
//
// All metrics are prefixed with "thumbindex_" to avoid naming collisions
// with other applications. Metrics are registered with the default registry
// via promauto; expose them by mounting promhttp.Handler() on the metrics
// endpoint.
//
// Categories:
//   - HTTP: request counts, durations, and in-flight gauge
//   - Database: query counts/durations per operation, connection and file-size gauges
//   - Indexer: reindex runs, records processed, skipped entries, errors
//   - Export: export counts, durations, and archive sizes
//   - Normalizer: normalization outcomes and decodes by format
//   - Store contents: record counts and payload bytes, refreshed by [Collector]
//
// The [Collector] periodically gathers store statistics from a
// [StatsProvider] and the SQLite file sizes from disk:
//
//	collector := metrics.NewCollector(provider, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
