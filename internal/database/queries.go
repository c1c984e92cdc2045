package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// buildPredicates translates QueryOptions filters into a WHERE clause and
// its arguments. Filters compose with AND; the free-text search is an OR
// of substring matches over hash, cache_key, entry_hash, and extension.
func buildPredicates(opts QueryOptions) (string, []any) {
	var conds []string
	var args []any

	if opts.CacheSize != "" {
		conds = append(conds, "cache_size = ?")
		args = append(args, opts.CacheSize)
	}
	if opts.ImageFormat != "" {
		conds = append(conds, "image_format = ?")
		args = append(args, opts.ImageFormat)
	}
	if opts.Extension != "" {
		conds = append(conds, "extension LIKE ?")
		args = append(args, "%"+opts.Extension+"%")
	}
	if len(opts.CacheFiles) > 0 {
		placeholders := strings.Repeat("?,", len(opts.CacheFiles))
		conds = append(conds, "cache_file IN ("+placeholders[:len(placeholders)-1]+")")
		for _, f := range opts.CacheFiles {
			args = append(args, f)
		}
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		conds = append(conds, "(hash LIKE ? OR cache_key LIKE ? OR entry_hash LIKE ? OR extension LIKE ?)")
		args = append(args, pattern, pattern, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause maps a Sort to its ORDER BY. Unknown values fall back to
// newest-first. indexed_at ties break on id so pagination is stable.
func orderClause(sort Sort) string {
	switch sort {
	case SortOldest:
		return " ORDER BY indexed_at ASC, id ASC"
	case SortLargest:
		return " ORDER BY data_size DESC, id DESC"
	case SortSmallest:
		return " ORDER BY data_size ASC, id ASC"
	case SortModified:
		// NULL last_modified rows sort after every dated row
		return " ORDER BY last_modified IS NULL, last_modified DESC, id DESC"
	default:
		return " ORDER BY indexed_at DESC, id DESC"
	}
}

// Query returns one page of record summaries matching opts, plus the total
// match count before pagination. Page is 1-indexed; a page past the end
// returns an empty slice with the true total.
func (d *Database) Query(ctx context.Context, opts QueryOptions) ([]*RecordSummary, int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	where, args := buildPredicates(opts)

	// Count and page read run on the same connection so they see a
	// consistent snapshot even while an index run is writing.
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var total int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM thumbnails"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = 1
	}
	offset := (page - 1) * perPage

	query := "SELECT " + recordColumns + " FROM thumbnails" + where +
		orderClause(opts.Sort) + " LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), perPage, offset)

	rows, err := conn.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]*RecordSummary, 0, perPage)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		summaries = append(summaries, rec.Summary())
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}
