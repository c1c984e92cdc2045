// Package ingest drives thumbnail cache entries into the database.
//
// A reindex pass clears the targeted records, streams entries from the
// cache source, enriches each with a content hash and probed image
// properties, and upserts it. Exactly one pass runs at a time.
package ingest
