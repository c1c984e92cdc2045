package handlers

import (
	"net/http"
	"sort"

	"thumbindex/internal/database"
	"thumbindex/internal/logging"
	"thumbindex/internal/media"
	"thumbindex/internal/thumbcache"
)

// statsResponse combines index statistics with the live state of the
// cache directory.
type statsResponse struct {
	*database.Stats
	Cache            thumbcache.DirStats `json:"cache"`
	DecoderAvailable bool                `json:"decoder_available"`
}

// GetStats returns aggregate statistics about the index and the cache
// directory it was built from.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Stats(r.Context())
	if err != nil {
		logging.Error("failed to compute stats: %v", err)
		writeJSONError(w, "internal_error", "failed to compute stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, statsResponse{
		Stats:            stats,
		Cache:            h.source.Stats(),
		DecoderAvailable: media.IsVipsAvailable(),
	})
}

// GetFilters returns the distinct filter values present in the index,
// for populating filter dropdowns.
func (h *Handlers) GetFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.db.FilterOptions(r.Context())
	if err != nil {
		logging.Error("failed to load filter options: %v", err)
		writeJSONError(w, "internal_error", "failed to load filter options", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, filters)
}

// cacheFilesResponse lists cache files on disk alongside those already
// present in the index.
type cacheFilesResponse struct {
	Available []thumbcache.CacheFileStat `json:"available"`
	Indexed   []string                   `json:"indexed"`
}

// GetCacheFiles returns the cache files available on disk and the cache
// files represented in the index.
func (h *Handlers) GetCacheFiles(w http.ResponseWriter, r *http.Request) {
	available, err := h.source.CacheFiles()
	if err != nil {
		logging.Warn("failed to stat cache files: %v", err)
	}
	if available == nil {
		available = []thumbcache.CacheFileStat{}
	}

	byFile, err := h.db.IndexedFiles(r.Context())
	if err != nil {
		logging.Error("failed to list indexed cache files: %v", err)
		writeJSONError(w, "internal_error", "failed to list indexed cache files", http.StatusInternalServerError)
		return
	}

	indexed := make([]string, 0, len(byFile))
	for name := range byFile {
		indexed = append(indexed, name)
	}
	sort.Strings(indexed)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, cacheFilesResponse{
		Available: available,
		Indexed:   indexed,
	})
}
