package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"thumbindex/internal/database"
	"thumbindex/internal/logging"
	"thumbindex/internal/media"
	"thumbindex/internal/metrics"
	"thumbindex/internal/thumbcache"
)

// ErrSourceUnavailable is returned when the cache source cannot be read.
// Nothing is cleared or written in that case.
var ErrSourceUnavailable = errors.New("cache source unavailable")

// ErrAlreadyRunning is returned when a reindex is triggered while a
// previous pass is still in progress.
var ErrAlreadyRunning = errors.New("reindex already in progress")

// progressInterval is how many records pass between progress callbacks.
const progressInterval = 100

// ProgressFunc receives (processed, total) during a reindex pass. The
// total is -1: the cache format does not expose entry counts up front.
type ProgressFunc func(processed, total int)

// Store is the subset of database operations a reindex pass needs.
type Store interface {
	Clear(ctx context.Context, cacheFiles []string) (int64, error)
	Upsert(ctx context.Context, rec *database.Record) (int64, error)
	SetMeta(ctx context.Context, key, value string) error
}

// EntrySource streams raw thumbnail entries from the cache directory.
type EntrySource interface {
	Available() bool
	Stream(selected []string, fn func(*thumbcache.Entry) error) error
}

// Reindexer drives cache entries into the store. One pass at a time.
type Reindexer struct {
	store    Store
	source   EntrySource
	progress ProgressFunc
	running  atomic.Bool
}

// NewReindexer creates a Reindexer. progress may be nil.
func NewReindexer(store Store, source EntrySource, progress ProgressFunc) *Reindexer {
	return &Reindexer{
		store:    store,
		source:   source,
		progress: progress,
	}
}

// IsIndexing reports whether a reindex pass is currently running.
func (r *Reindexer) IsIndexing() bool {
	return r.running.Load()
}

// Reindex clears the targeted records and re-ingests them from the cache
// source. With a non-empty selected list only those cache files are
// cleared and read; otherwise the whole store is rebuilt. Returns the
// number of records indexed. Runs synchronously to completion.
func (r *Reindexer) Reindex(ctx context.Context, selected []string) (int, error) {
	if !r.source.Available() {
		return 0, ErrSourceUnavailable
	}
	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	metrics.IndexerRunsTotal.Inc()
	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)

	if len(selected) > 0 {
		logging.Info("Reindexing %d selected cache files", len(selected))
	} else {
		logging.Info("Reindexing all cache files")
	}

	removed, err := r.store.Clear(ctx, selected)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return 0, fmt.Errorf("failed to clear existing records: %w", err)
	}
	logging.Debug("Cleared %d existing records", removed)

	count := 0
	err = r.source.Stream(selected, func(entry *thumbcache.Entry) error {
		if len(entry.Data) == 0 {
			metrics.IndexerEntriesSkipped.Inc()
			return nil
		}

		rec := buildRecord(entry)
		if _, err := r.store.Upsert(ctx, rec); err != nil {
			metrics.IndexerErrors.Inc()
			return fmt.Errorf("failed to upsert %s/%s: %w", entry.CacheFile, entry.CacheKey, err)
		}

		count++
		metrics.IndexerRecordsProcessed.Inc()
		if r.progress != nil && count%progressInterval == 0 {
			r.progress(count, -1)
		}
		return nil
	})
	if err != nil {
		metrics.IndexerErrors.Inc()
		return count, err
	}

	if err := r.recordRunMetadata(ctx, count, selected); err != nil {
		logging.Warn("Failed to record run metadata: %v", err)
	}

	duration := time.Since(start)
	metrics.IndexerLastRunTimestamp.SetToCurrentTime()
	metrics.IndexerLastRunDuration.Set(duration.Seconds())
	logging.Info("Reindex complete: %d records in %v", count, duration.Round(time.Millisecond))

	return count, nil
}

// buildRecord enriches one raw entry into a persistable record: content
// hash, size class, and best-effort image properties.
func buildRecord(entry *thumbcache.Entry) *database.Record {
	sum := md5.Sum(entry.Data)

	rec := &database.Record{
		CacheFile:      entry.CacheFile,
		CacheKey:       entry.CacheKey,
		CacheSize:      thumbcache.SizeFromFilename(entry.CacheFile),
		DataSize:       int64(len(entry.Data)),
		Hash:           hex.EncodeToString(sum[:]),
		Data:           entry.Data,
		EntryHash:      entry.EntryHash,
		Extension:      entry.Extension,
		DataChecksum:   entry.DataChecksum,
		HeaderChecksum: entry.HeaderChecksum,
		LastModified:   entry.LastModified,
		Flags:          entry.Flags,
	}

	info, err := media.Info(entry.Data)
	if err != nil {
		// Not an error: the payload is indexed with unknown image fields
		logging.Debug("Could not probe %s/%s: %v", entry.CacheFile, entry.CacheKey, err)
		return rec
	}
	rec.Width = &info.Width
	rec.Height = &info.Height
	rec.ImageFormat = &info.Format
	rec.ImageMode = &info.Mode
	return rec
}

// recordRunMetadata persists what the pass did for later introspection.
func (r *Reindexer) recordRunMetadata(ctx context.Context, count int, selected []string) error {
	if err := r.store.SetMeta(ctx, "last_indexed", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := r.store.SetMeta(ctx, "thumbnail_count", strconv.Itoa(count)); err != nil {
		return err
	}
	// Empty string marks an unscoped run
	return r.store.SetMeta(ctx, "selected_files", strings.Join(selected, ","))
}
