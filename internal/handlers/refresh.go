package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"thumbindex/internal/ingest"
	"thumbindex/internal/logging"
)

// refreshRequest is the optional body of a refresh request. When
// SelectedFiles is empty, all discovered cache files are indexed.
type refreshRequest struct {
	SelectedFiles []string `json:"selected_files"`
}

// refreshResponse reports the outcome of a completed reindex run.
type refreshResponse struct {
	Status        string   `json:"status"`
	Count         int      `json:"count"`
	Message       string   `json:"message"`
	SelectedFiles []string `json:"selected_files,omitempty"`
}

// Refresh rebuilds the index from the cache directory. The run is
// synchronous; concurrent requests are rejected with 409.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "bad_request", "invalid JSON body", http.StatusBadRequest)
		return
	}

	count, err := h.reindexer.Reindex(r.Context(), req.SelectedFiles)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrSourceUnavailable):
			writeJSONError(w, "source_unavailable", "cache directory is not readable", http.StatusServiceUnavailable)
		case errors.Is(err, ingest.ErrAlreadyRunning):
			writeJSONError(w, "conflict", "a reindex is already in progress", http.StatusConflict)
		default:
			logging.Error("reindex failed: %v", err)
			writeJSONError(w, "internal_error", "reindex failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, refreshResponse{
		Status:        "success",
		Count:         count,
		Message:       fmt.Sprintf("indexed %d thumbnails", count),
		SelectedFiles: req.SelectedFiles,
	})
}
