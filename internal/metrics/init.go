package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"init_schema", "upsert", "clear", "get_by_id",
		"get_data_by_id", "get_by_ids", "query", "stats", "filter_options",
		"indexed_files", "get_meta", "set_meta", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, kind := range []string{"single", "archive"} {
		ExportsTotal.WithLabelValues(kind, "success")
		ExportsTotal.WithLabelValues(kind, "error")
		ExportDuration.WithLabelValues(kind)
	}

	for _, outcome := range []string{"png", "passthrough"} {
		NormalizeTotal.WithLabelValues(outcome)
	}

	for _, format := range []string{"jpeg", "png", "gif", "bmp", "webp", "tiff", "unknown"} {
		ImageDecodeByFormat.WithLabelValues(format)
	}
}
