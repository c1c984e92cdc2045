package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a test database in a temp directory.
func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath = filepath.Join(tmpDir, "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close database: %v", err)
		}
	})

	return db, dbPath
}

// testRecord builds a record with distinguishable values derived from n.
func testRecord(n int) *Record {
	width := 256
	height := 192
	ext := fmt.Sprintf("jpg%d", n%3)
	format := []string{"jpeg", "png", "bmp"}[n%3]
	mode := "RGB"
	modified := fmt.Sprintf("2024-05-%02dT10:00:00", (n%27)+1)
	flags := int64(n)

	return &Record{
		CacheFile:    fmt.Sprintf("thumbcache_%d.db", n%2),
		CacheKey:     fmt.Sprintf("entry-%04d", n),
		CacheSize:    []string{"96", "256", "1024"}[n%3],
		Width:        &width,
		Height:       &height,
		DataSize:     int64(100 + n),
		Hash:         fmt.Sprintf("%032x", n),
		Data:         []byte(fmt.Sprintf("payload-%d", n)),
		Extension:    &ext,
		ImageFormat:  &format,
		ImageMode:    &mode,
		LastModified: &modified,
		Flags:        &flags,
	}
}

func TestSchemaVersion(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)

	var version int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("user_version = %d, want %d", version, len(migrations))
	}

	// Reopening must be a no-op, not a failure
	if err := db.initSchema(context.Background()); err != nil {
		t.Errorf("re-running initSchema failed: %v", err)
	}
}

func TestUpsertKeepsID(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord(1)
	id1, err := db.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if id1 == 0 {
		t.Fatal("first upsert returned id 0")
	}

	// Same natural key with new content must update in place
	rec.Data = []byte("replacement payload")
	rec.DataSize = int64(len(rec.Data))
	id2, err := db.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("upsert changed id: first=%d second=%d", id1, id2)
	}

	data, err := db.GetDataByID(ctx, id1)
	if err != nil {
		t.Fatalf("GetDataByID failed: %v", err)
	}
	if string(data) != "replacement payload" {
		t.Errorf("payload not replaced, got %q", data)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 1 {
		t.Errorf("expected 1 record after double upsert, got %d", stats.TotalRecords)
	}
}

func TestGetByID(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	id, err := db.Upsert(ctx, testRecord(7))
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rec, err := db.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.CacheKey != "entry-0007" {
		t.Errorf("cache_key = %q, want entry-0007", rec.CacheKey)
	}
	if rec.Width == nil || *rec.Width != 256 {
		t.Errorf("width = %v, want 256", rec.Width)
	}
	if len(rec.Data) != 0 {
		t.Error("GetByID should not load payload bytes")
	}
	if rec.Dimensions() != "256x192" {
		t.Errorf("dimensions = %q, want 256x192", rec.Dimensions())
	}
	if rec.IndexedAt.IsZero() {
		t.Error("indexed_at not set")
	}

	if _, err := db.GetByID(ctx, id+1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
	if _, err := db.GetDataByID(ctx, id+1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id data: got %v, want ErrNotFound", err)
	}
}

func TestNullableFields(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	// A record whose payload could not be decoded has nil image fields
	rec := &Record{
		CacheFile: "thumbcache_256.db",
		CacheKey:  "undecodable",
		CacheSize: "256",
		DataSize:  12,
		Hash:      "abc123",
		Data:      []byte("not an image"),
	}
	id, err := db.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := db.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Width != nil || got.Height != nil {
		t.Errorf("expected nil dimensions, got %v x %v", got.Width, got.Height)
	}
	if got.ImageFormat != nil || got.ImageMode != nil {
		t.Error("expected nil image format and mode")
	}
	if got.Flags != nil {
		t.Errorf("expected nil flags, got %v", *got.Flags)
	}
	if got.Dimensions() != "" {
		t.Errorf("dimensions = %q, want empty", got.Dimensions())
	}
}

func TestGetByIDsOmitsMissing(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := db.Upsert(ctx, testRecord(i))
		if err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	// Request two real ids plus one that does not exist
	records, err := db.GetByIDs(ctx, []int64{ids[0], ids[2], 99999})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, rec := range records {
		if len(rec.Data) == 0 {
			t.Errorf("record %d missing payload", rec.ID)
		}
	}

	records, err = db.GetByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetByIDs(nil) failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("GetByIDs(nil) returned %d records, want 0", len(records))
	}
}

func TestQueryFilters(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := db.Upsert(ctx, testRecord(i)); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		opts      QueryOptions
		wantTotal int
	}{
		{
			name:      "no filters",
			opts:      QueryOptions{Page: 1, PerPage: 50},
			wantTotal: 12,
		},
		{
			name:      "cache size",
			opts:      QueryOptions{CacheSize: "96", Page: 1, PerPage: 50},
			wantTotal: 4,
		},
		{
			name:      "image format",
			opts:      QueryOptions{ImageFormat: "png", Page: 1, PerPage: 50},
			wantTotal: 4,
		},
		{
			name:      "cache file membership",
			opts:      QueryOptions{CacheFiles: []string{"thumbcache_0.db"}, Page: 1, PerPage: 50},
			wantTotal: 6,
		},
		{
			name:      "search matches cache key",
			opts:      QueryOptions{Search: "entry-0003", Page: 1, PerPage: 50},
			wantTotal: 1,
		},
		{
			name:      "filters compose with AND",
			opts:      QueryOptions{CacheSize: "96", CacheFiles: []string{"thumbcache_1.db"}, Page: 1, PerPage: 50},
			wantTotal: 2,
		},
		{
			name:      "no matches",
			opts:      QueryOptions{Search: "nope-never", Page: 1, PerPage: 50},
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summaries, total, err := db.Query(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(summaries) != tt.wantTotal {
				t.Errorf("len(summaries) = %d, want %d", len(summaries), tt.wantTotal)
			}
		})
	}
}

func TestQueryPagination(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := db.Upsert(ctx, testRecord(i)); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	seen := make(map[int64]bool)
	for page := 1; page <= 4; page++ {
		summaries, total, err := db.Query(ctx, QueryOptions{Page: page, PerPage: 3})
		if err != nil {
			t.Fatalf("page %d failed: %v", page, err)
		}
		if total != 10 {
			t.Errorf("page %d total = %d, want 10", page, total)
		}
		for _, s := range summaries {
			if seen[s.ID] {
				t.Errorf("record %d returned on more than one page", s.ID)
			}
			seen[s.ID] = true
		}
	}
	if len(seen) != 10 {
		t.Errorf("pages covered %d records, want 10", len(seen))
	}

	// Page past the end keeps the true total
	summaries, total, err := db.Query(ctx, QueryOptions{Page: 99, PerPage: 3})
	if err != nil {
		t.Fatalf("out-of-range page failed: %v", err)
	}
	if len(summaries) != 0 || total != 10 {
		t.Errorf("out-of-range page: len=%d total=%d, want 0 and 10", len(summaries), total)
	}
}

func TestQuerySort(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := db.Upsert(ctx, testRecord(i)); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}
	// One record with no modification date must sort last under "modified"
	if _, err := db.Upsert(ctx, &Record{
		CacheFile: "thumbcache_0.db",
		CacheKey:  "undated",
		CacheSize: "96",
		DataSize:  1,
		Hash:      "ffff",
		Data:      []byte("x"),
	}); err != nil {
		t.Fatalf("upsert undated failed: %v", err)
	}

	t.Run("largest", func(t *testing.T) {
		summaries, _, err := db.Query(ctx, QueryOptions{Sort: SortLargest, Page: 1, PerPage: 50})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		for i := 1; i < len(summaries); i++ {
			if summaries[i].DataSize > summaries[i-1].DataSize {
				t.Fatalf("largest sort out of order at %d", i)
			}
		}
	})

	t.Run("smallest", func(t *testing.T) {
		summaries, _, err := db.Query(ctx, QueryOptions{Sort: SortSmallest, Page: 1, PerPage: 50})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		for i := 1; i < len(summaries); i++ {
			if summaries[i].DataSize < summaries[i-1].DataSize {
				t.Fatalf("smallest sort out of order at %d", i)
			}
		}
	})

	t.Run("modified nulls last", func(t *testing.T) {
		summaries, _, err := db.Query(ctx, QueryOptions{Sort: SortModified, Page: 1, PerPage: 50})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		last := summaries[len(summaries)-1]
		if last.LastModified != nil {
			t.Errorf("expected undated record last, got %v", *last.LastModified)
		}
		for i := 1; i < len(summaries)-1; i++ {
			if summaries[i].LastModified == nil || summaries[i-1].LastModified == nil {
				continue
			}
			if *summaries[i].LastModified > *summaries[i-1].LastModified {
				t.Fatalf("modified sort out of order at %d", i)
			}
		}
	})

	t.Run("unknown sort falls back to newest", func(t *testing.T) {
		if got := orderClause(Sort("bogus")); got != orderClause(SortNewest) {
			t.Errorf("unknown sort: got %q", got)
		}
	})
}

func TestClear(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, err := db.Upsert(ctx, testRecord(i)); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	// Scoped clear removes only the named file's rows
	removed, err := db.Clear(ctx, []string{"thumbcache_0.db"})
	if err != nil {
		t.Fatalf("scoped Clear failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("scoped Clear removed %d rows, want 4", removed)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 4 {
		t.Errorf("records after scoped clear = %d, want 4", stats.TotalRecords)
	}
	if _, ok := stats.ByCacheFile["thumbcache_0.db"]; ok {
		t.Error("cleared cache file still present in stats")
	}

	// Scoped clear leaves run metadata alone
	if err := db.SetMeta(ctx, "thumbnail_count", "4"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}

	// Unscoped clear removes everything, run metadata included
	removed, err = db.Clear(ctx, nil)
	if err != nil {
		t.Fatalf("full Clear failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("full Clear removed %d rows, want 4", removed)
	}
	if _, err := db.GetMeta(ctx, "thumbnail_count"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("run metadata survived full clear: err = %v", err)
	}
}

func TestStatsAndFilterOptions(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		if _, err := db.Upsert(ctx, testRecord(i)); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 9 {
		t.Errorf("total = %d, want 9", stats.TotalRecords)
	}
	if stats.ByCacheSize["96"] != 3 || stats.ByCacheSize["256"] != 3 || stats.ByCacheSize["1024"] != 3 {
		t.Errorf("by_cache_size = %v", stats.ByCacheSize)
	}
	var wantBytes int64
	for i := 0; i < 9; i++ {
		wantBytes += int64(100 + i)
	}
	if stats.TotalDataBytes != wantBytes {
		t.Errorf("total bytes = %d, want %d", stats.TotalDataBytes, wantBytes)
	}

	opts, err := db.FilterOptions(ctx)
	if err != nil {
		t.Fatalf("FilterOptions failed: %v", err)
	}
	if len(opts.CacheSizes) != 3 {
		t.Errorf("cache sizes = %v, want 3 entries", opts.CacheSizes)
	}
	if len(opts.CacheFiles) != 2 {
		t.Errorf("cache files = %v, want 2 entries", opts.CacheFiles)
	}
	for i := 1; i < len(opts.ImageFormats); i++ {
		if opts.ImageFormats[i] < opts.ImageFormats[i-1] {
			t.Errorf("image formats not sorted: %v", opts.ImageFormats)
		}
	}

	files, err := db.IndexedFiles(ctx)
	if err != nil {
		t.Fatalf("IndexedFiles failed: %v", err)
	}
	if files["thumbcache_0.db"]+files["thumbcache_1.db"] != 9 {
		t.Errorf("indexed files = %v", files)
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetMeta(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing key: got %v, want sql.ErrNoRows", err)
	}

	if err := db.SetMeta(ctx, "selected_files", "thumbcache_96.db"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	if err := db.SetMeta(ctx, "selected_files", "thumbcache_256.db"); err != nil {
		t.Fatalf("SetMeta overwrite failed: %v", err)
	}
	value, err := db.GetMeta(ctx, "selected_files")
	if err != nil {
		t.Fatalf("GetMeta failed: %v", err)
	}
	if value != "thumbcache_256.db" {
		t.Errorf("value = %q, want thumbcache_256.db", value)
	}

	// Last indexed round trip
	if ts, err := db.GetLastIndexed(ctx); err != nil || !ts.IsZero() {
		t.Errorf("GetLastIndexed before any run: ts=%v err=%v", ts, err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := db.SetLastIndexed(ctx, now); err != nil {
		t.Fatalf("SetLastIndexed failed: %v", err)
	}
	ts, err := db.GetLastIndexed(ctx)
	if err != nil {
		t.Fatalf("GetLastIndexed failed: %v", err)
	}
	if !ts.Equal(now) {
		t.Errorf("last indexed = %v, want %v", ts, now)
	}
}

func TestRecordQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{name: "successful query", operation: "test_operation", err: nil},
		{name: "failed query", operation: "test_operation", err: errors.New("test error")},
		{name: "empty operation name", operation: "", err: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// Must not panic for any combination
			recordQuery(tt.operation, time.Now(), tt.err)
		})
	}
}

func TestGetStatsForCollector(t *testing.T) {
	t.Parallel()
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := db.Upsert(ctx, testRecord(i)); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	stats := db.GetStats()
	if stats.TotalRecords != 5 {
		t.Errorf("collector total = %d, want 5", stats.TotalRecords)
	}
	if stats.TotalDataBytes == 0 {
		t.Error("collector byte total not set")
	}
	var byClass int
	for _, n := range stats.BySizeClass {
		byClass += n
	}
	if byClass != 5 {
		t.Errorf("size class counts sum to %d, want 5", byClass)
	}
}
