package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"thumbindex/internal/database"
	"thumbindex/internal/logging"
	"thumbindex/internal/media"
	"thumbindex/internal/metrics"
)

// ErrNoSelection is returned for an export request with zero ids.
var ErrNoSelection = errors.New("no thumbnails selected")

// ErrTooManySelected is returned when the selection exceeds the
// configured export ceiling.
var ErrTooManySelected = errors.New("too many thumbnails selected")

// unknownToken fills in for missing path components and report fields.
const unknownToken = "unknown"

// Store is the subset of database operations exports need.
type Store interface {
	GetDataByID(ctx context.Context, id int64) ([]byte, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*database.Record, error)
}

// Exporter packages selected records for download.
type Exporter struct {
	store    Store
	maxCount int
}

// NewExporter creates an Exporter with the given selection ceiling.
func NewExporter(store Store, maxCount int) *Exporter {
	return &Exporter{store: store, maxCount: maxCount}
}

// MaxCount returns the configured selection ceiling.
func (e *Exporter) MaxCount() int {
	return e.maxCount
}

// Single returns one record's payload normalized to PNG.
// database.ErrNotFound propagates for an absent id; an undecodable
// payload is returned as-is, never an error.
func (e *Exporter) Single(ctx context.Context, id int64) ([]byte, error) {
	start := time.Now()

	data, err := e.store.GetDataByID(ctx, id)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("single", "error").Inc()
		return nil, err
	}

	out := media.Normalize(data)
	metrics.ExportsTotal.WithLabelValues("single", "success").Inc()
	metrics.ExportDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	return out, nil
}

// Archive packages the selected records into a zip: one normalized PNG
// per found record plus metadata.txt and metadata.csv. The selection is
// validated before any storage access; ids that do not exist are
// silently omitted.
func (e *Exporter) Archive(ctx context.Context, ids []int64) ([]byte, error) {
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}
	if len(ids) > e.maxCount {
		return nil, fmt.Errorf("%w: %d requested, limit %d", ErrTooManySelected, len(ids), e.maxCount)
	}

	start := time.Now()

	records, err := e.store.GetByIDs(ctx, ids)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("archive", "error").Inc()
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, rec := range records {
		w, err := zw.Create(entryPath(rec))
		if err != nil {
			metrics.ExportsTotal.WithLabelValues("archive", "error").Inc()
			return nil, fmt.Errorf("failed to create archive entry: %w", err)
		}
		if _, err := w.Write(media.Normalize(rec.Data)); err != nil {
			metrics.ExportsTotal.WithLabelValues("archive", "error").Inc()
			return nil, fmt.Errorf("failed to write archive entry: %w", err)
		}
	}

	report, err := zw.Create("metadata.txt")
	if err == nil {
		_, err = report.Write([]byte(textReport(records)))
	}
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("archive", "error").Inc()
		return nil, fmt.Errorf("failed to write metadata.txt: %w", err)
	}

	csvFile, err := zw.Create("metadata.csv")
	if err == nil {
		err = writeCSVReport(csvFile, records)
	}
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("archive", "error").Inc()
		return nil, fmt.Errorf("failed to write metadata.csv: %w", err)
	}

	if err := zw.Close(); err != nil {
		metrics.ExportsTotal.WithLabelValues("archive", "error").Inc()
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	logging.Info("Exported %d thumbnails (%d bytes)", len(records), buf.Len())
	metrics.ExportsTotal.WithLabelValues("archive", "success").Inc()
	metrics.ExportDuration.WithLabelValues("archive").Observe(time.Since(start).Seconds())
	metrics.ExportArchiveBytes.Observe(float64(buf.Len()))
	return buf.Bytes(), nil
}

// entryPath builds the archive path for one record:
// <cache_size>/<id>_<hash prefix>[_<extension>].png
func entryPath(rec *database.Record) string {
	folder := rec.CacheSize
	if folder == "" {
		folder = unknownToken
	}

	hashPrefix := unknownToken
	if len(rec.Hash) >= 8 {
		hashPrefix = rec.Hash[:8]
	} else if rec.Hash != "" {
		hashPrefix = rec.Hash
	}

	name := fmt.Sprintf("%d_%s", rec.ID, hashPrefix)
	if rec.Extension != nil {
		if ext := strings.ReplaceAll(*rec.Extension, ".", ""); ext != "" {
			name += "_" + ext
		}
	}
	return folder + "/" + name + ".png"
}
