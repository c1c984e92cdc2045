package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = `id, cache_file, cache_key, cache_size, width, height, data_size, hash,
	entry_hash, extension, data_checksum, header_checksum, image_format, image_mode,
	last_modified, flags, indexed_at`

// Upsert inserts or updates a record keyed by (cache_file, cache_key) and
// returns its id. An existing record keeps its id; everything else is
// replaced and indexed_at is refreshed.
func (d *Database) Upsert(ctx context.Context, rec *Record) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
	INSERT INTO thumbnails (cache_file, cache_key, cache_size, width, height, data_size, hash, data,
		entry_hash, extension, data_checksum, header_checksum, image_format, image_mode,
		last_modified, flags, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(cache_file, cache_key) DO UPDATE SET
		cache_size = excluded.cache_size,
		width = excluded.width,
		height = excluded.height,
		data_size = excluded.data_size,
		hash = excluded.hash,
		data = excluded.data,
		entry_hash = excluded.entry_hash,
		extension = excluded.extension,
		data_checksum = excluded.data_checksum,
		header_checksum = excluded.header_checksum,
		image_format = excluded.image_format,
		image_mode = excluded.image_mode,
		last_modified = excluded.last_modified,
		flags = excluded.flags,
		indexed_at = strftime('%s', 'now')
	`

	_, err = tx.ExecContext(ctx, query,
		rec.CacheFile, rec.CacheKey, rec.CacheSize, rec.Width, rec.Height,
		rec.DataSize, rec.Hash, rec.Data,
		rec.EntryHash, rec.Extension, rec.DataChecksum, rec.HeaderChecksum,
		rec.ImageFormat, rec.ImageMode, rec.LastModified, rec.Flags,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert record: %w", err)
	}

	// last_insert_rowid() is unreliable for ON CONFLICT updates, so read
	// the id back by the natural key within the same transaction.
	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM thumbnails WHERE cache_file = ? AND cache_key = ?",
		rec.CacheFile, rec.CacheKey,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read upserted record id: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return id, nil
}

// GetByID retrieves a single record without its payload bytes.
func (d *Database) GetByID(ctx context.Context, id int64) (*Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_by_id", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM thumbnails WHERE id = ?", id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// GetDataByID retrieves the raw payload bytes for a single record.
func (d *Database) GetDataByID(ctx context.Context, id int64) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_data_by_id", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	err = d.db.QueryRowContext(ctx, "SELECT data FROM thumbnails WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetByIDs retrieves full records (including payloads) for the given ids.
// Ids that do not exist are silently omitted; results are ordered by id.
func (d *Database) GetByIDs(ctx context.Context, ids []int64) ([]*Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_by_ids", start, err) }()

	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT id, cache_file, cache_key, cache_size, width, height, data_size, hash, data,
		entry_hash, extension, data_checksum, header_checksum, image_format, image_mode,
		last_modified, flags, indexed_at
	FROM thumbnails WHERE id IN (` + placeholders + `) ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records by id: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		var rec Record
		var indexedAt int64
		var width, height sql.NullInt64
		var entryHash, extension, dataChecksum, headerChecksum sql.NullString
		var imageFormat, imageMode, lastModified sql.NullString
		var flags sql.NullInt64

		err = rows.Scan(
			&rec.ID, &rec.CacheFile, &rec.CacheKey, &rec.CacheSize,
			&width, &height, &rec.DataSize, &rec.Hash, &rec.Data,
			&entryHash, &extension, &dataChecksum, &headerChecksum,
			&imageFormat, &imageMode, &lastModified, &flags, &indexedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		applyNullables(&rec, width, height, entryHash, extension, dataChecksum,
			headerChecksum, imageFormat, imageMode, lastModified, flags)
		rec.IndexedAt = time.Unix(indexedAt, 0).UTC()
		records = append(records, &rec)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Clear removes records for the given cache files, or all records when
// cacheFiles is empty. A full clear also drops run metadata. Returns the
// number of record rows removed.
func (d *Database) Clear(ctx context.Context, cacheFiles []string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	var result sql.Result
	if len(cacheFiles) == 0 {
		result, err = tx.ExecContext(ctx, "DELETE FROM thumbnails")
		if err == nil {
			_, err = tx.ExecContext(ctx, "DELETE FROM metadata")
		}
	} else {
		placeholders := strings.Repeat("?,", len(cacheFiles))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(cacheFiles))
		for i, f := range cacheFiles {
			args[i] = f
		}
		result, err = tx.ExecContext(ctx,
			"DELETE FROM thumbnails WHERE cache_file IN ("+placeholders+")", args...)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear records: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit clear: %w", err)
	}
	return removed, nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one row of recordColumns (no payload) into a Record.
func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var indexedAt int64
	var width, height sql.NullInt64
	var entryHash, extension, dataChecksum, headerChecksum sql.NullString
	var imageFormat, imageMode, lastModified sql.NullString
	var flags sql.NullInt64

	err := row.Scan(
		&rec.ID, &rec.CacheFile, &rec.CacheKey, &rec.CacheSize,
		&width, &height, &rec.DataSize, &rec.Hash,
		&entryHash, &extension, &dataChecksum, &headerChecksum,
		&imageFormat, &imageMode, &lastModified, &flags, &indexedAt,
	)
	if err != nil {
		return nil, err
	}

	applyNullables(&rec, width, height, entryHash, extension, dataChecksum,
		headerChecksum, imageFormat, imageMode, lastModified, flags)
	rec.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &rec, nil
}

func applyNullables(rec *Record, width, height sql.NullInt64,
	entryHash, extension, dataChecksum, headerChecksum,
	imageFormat, imageMode, lastModified sql.NullString, flags sql.NullInt64) {
	if width.Valid && height.Valid {
		w, h := int(width.Int64), int(height.Int64)
		rec.Width, rec.Height = &w, &h
	}
	rec.EntryHash = nullString(entryHash)
	rec.Extension = nullString(extension)
	rec.DataChecksum = nullString(dataChecksum)
	rec.HeaderChecksum = nullString(headerChecksum)
	rec.ImageFormat = nullString(imageFormat)
	rec.ImageMode = nullString(imageMode)
	rec.LastModified = nullString(lastModified)
	if flags.Valid {
		f := flags.Int64
		rec.Flags = &f
	}
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
