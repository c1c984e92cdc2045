// Package database provides SQLite storage for indexed thumbnail records.
//
// It handles storage and retrieval of:
//   - Thumbnail payloads and their extracted metadata
//   - Filtered, sorted, paginated record queries
//   - Aggregate statistics and filter option listings
//   - Index run metadata (last run time, record counts)
//
// The database uses WAL mode for improved concurrent read performance and
// versioned schema migrations tracked in PRAGMA user_version.
package database
