package database

import (
	"context"
	"fmt"
	"time"

	"thumbindex/internal/logging"
	"thumbindex/internal/metrics"
)

// Stats computes the aggregate summary over all indexed records.
func (d *Database) Stats(ctx context.Context) (*Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stats := &Stats{
		ByCacheSize:   make(map[string]int),
		ByCacheFile:   make(map[string]int),
		ByImageFormat: make(map[string]int),
		ByExtension:   make(map[string]int),
	}

	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(data_size), 0) FROM thumbnails",
	).Scan(&stats.TotalRecords, &stats.TotalDataBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}

	groups := []struct {
		column string
		dest   map[string]int
	}{
		{"cache_size", stats.ByCacheSize},
		{"cache_file", stats.ByCacheFile},
		{"image_format", stats.ByImageFormat},
		{"extension", stats.ByExtension},
	}
	for _, g := range groups {
		if err = d.groupCount(ctx, g.column, g.dest); err != nil {
			return nil, err
		}
	}

	if last, metaErr := d.GetMeta(ctx, "last_indexed"); metaErr == nil {
		stats.LastIndexed = last
	}

	return stats, nil
}

// groupCount fills dest with COUNT(*) grouped by column, skipping NULLs.
func (d *Database) groupCount(ctx context.Context, column string, dest map[string]int) error {
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM thumbnails WHERE %s IS NOT NULL GROUP BY %s",
		column, column, column)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return fmt.Errorf("failed to scan %s group: %w", column, err)
		}
		dest[value] = count
	}
	return rows.Err()
}

// FilterOptions returns the distinct values present for each filterable
// column, sorted ascending. NULLs are omitted.
func (d *Database) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("filter_options", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := &FilterOptions{}
	columns := []struct {
		column string
		dest   *[]string
	}{
		{"cache_size", &opts.CacheSizes},
		{"image_format", &opts.ImageFormats},
		{"extension", &opts.Extensions},
		{"cache_file", &opts.CacheFiles},
	}

	for _, c := range columns {
		values, distinctErr := d.distinct(ctx, c.column)
		if distinctErr != nil {
			err = distinctErr
			return nil, err
		}
		*c.dest = values
	}
	return opts, nil
}

func (d *Database) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM thumbnails WHERE %s IS NOT NULL ORDER BY %s",
		column, column, column)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// IndexedFiles returns the distinct cache files present in the store with
// their record counts, sorted by file name.
func (d *Database) IndexedFiles(ctx context.Context) (map[string]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("indexed_files", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	files := make(map[string]int)
	err = d.groupCount(ctx, "cache_file", files)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetStats implements metrics.StatsProvider for the periodic collector.
// Failures are logged rather than surfaced; the collector runs on a timer
// and will pick up fresh numbers on the next tick.
func (d *Database) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats := metrics.Stats{BySizeClass: make(map[string]int)}

	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(data_size), 0) FROM thumbnails",
	).Scan(&stats.TotalRecords, &stats.TotalDataBytes)
	if err != nil {
		logging.Error("Failed to collect store totals: %v", err)
		return stats
	}

	if err := d.groupCount(ctx, "cache_size", stats.BySizeClass); err != nil {
		logging.Error("Failed to collect size class counts: %v", err)
	}
	return stats
}
