package handlers

import (
	"time"

	"thumbindex/internal/database"
	"thumbindex/internal/export"
	"thumbindex/internal/ingest"
	"thumbindex/internal/thumbcache"
)

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	db        *database.Database
	source    *thumbcache.Source
	reindexer *ingest.Reindexer
	exporter  *export.Exporter

	perPageDefault int
	startTime      time.Time
}

// New creates a new Handlers instance
func New(db *database.Database, source *thumbcache.Source, reindexer *ingest.Reindexer, exporter *export.Exporter, perPageDefault int) *Handlers {
	return &Handlers{
		db:             db,
		source:         source,
		reindexer:      reindexer,
		exporter:       exporter,
		perPageDefault: perPageDefault,
		startTime:      time.Now(),
	}
}
