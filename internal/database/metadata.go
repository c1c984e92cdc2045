package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// GetMeta retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMeta(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_meta", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta sets a metadata key-value pair.
func (d *Database) SetMeta(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_meta", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastIndexed returns the timestamp of the last completed index run.
// Returns zero time if no run has completed.
func (d *Database) GetLastIndexed(ctx context.Context) (time.Time, error) {
	value, err := d.GetMeta(ctx, "last_indexed")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return timestamp, nil
}

// SetLastIndexed stores the timestamp of the last completed index run.
func (d *Database) SetLastIndexed(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetMeta(ctx, "last_indexed", "")
	}
	return d.SetMeta(ctx, "last_indexed", t.Format(time.RFC3339))
}

// GetIndexedCount returns the record count stored by the last index run.
func (d *Database) GetIndexedCount(ctx context.Context) (int, error) {
	value, err := d.GetMeta(ctx, "thumbnail_count")
	if errors.Is(err, sql.ErrNoRows) || value == "" {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}
