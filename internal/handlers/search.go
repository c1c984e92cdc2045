package handlers

import (
	"net/http"
	"strings"

	"thumbindex/internal/database"
	"thumbindex/internal/logging"
)

// searchResponse is the envelope for search results.
type searchResponse struct {
	Query   string                    `json:"query"`
	Results []*database.RecordSummary `json:"results"`
	Total   int                       `json:"total"`
	Page    int                       `json:"page,omitempty"`
	PerPage int                       `json:"per_page,omitempty"`
}

// SearchThumbnails searches indexed thumbnails by hash, cache key,
// entry hash, or extension. An empty query returns an empty result set
// rather than everything.
func (h *Handlers) SearchThumbnails(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	w.Header().Set("Content-Type", "application/json")

	if query == "" {
		writeJSON(w, searchResponse{
			Query:   query,
			Results: []*database.RecordSummary{},
			Total:   0,
		})
		return
	}

	opts := h.queryOptionsFromRequest(r)
	opts.Search = query

	summaries, total, err := h.db.Query(r.Context(), opts)
	if err != nil {
		logging.Error("thumbnail search failed: %v", err)
		writeJSONError(w, "internal_error", "search failed", http.StatusInternalServerError)
		return
	}

	if summaries == nil {
		summaries = []*database.RecordSummary{}
	}

	writeJSON(w, searchResponse{
		Query:   query,
		Results: summaries,
		Total:   total,
		Page:    opts.Page,
		PerPage: opts.PerPage,
	})
}
