// Package handlers contains the HTTP handlers for the thumbnail index API.
//
// Handlers are methods on the [Handlers] struct, which carries the shared
// dependencies (database, cache source, reindexer, exporter). All responses
// are JSON except thumbnail image bodies (PNG) and export archives (ZIP).
//
// Errors are returned as JSON objects with an "error" category and a
// human-readable "message", e.g.:
//
//	{"error": "not_found", "message": "thumbnail 42 not found"}
package handlers
