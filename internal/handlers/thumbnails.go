package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"thumbindex/internal/database"
	"thumbindex/internal/logging"
	"thumbindex/internal/media"
)

const maxPerPage = 1000

// listResponse is the page envelope for thumbnail listings.
type listResponse struct {
	Thumbnails []*database.RecordSummary `json:"thumbnails"`
	Page       int                       `json:"page"`
	PerPage    int                       `json:"per_page"`
	Total      int                       `json:"total"`
	TotalPages int                       `json:"total_pages"`
}

// queryOptionsFromRequest builds database query options from the common
// listing parameters shared by the list and search endpoints.
func (h *Handlers) queryOptionsFromRequest(r *http.Request) database.QueryOptions {
	q := r.URL.Query()

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	perPage := queryInt(r, "per_page", h.perPageDefault)
	if perPage < 1 {
		perPage = h.perPageDefault
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	opts := database.QueryOptions{
		CacheSize:   q.Get("size"),
		ImageFormat: q.Get("format"),
		Extension:   q.Get("extension"),
		Search:      q.Get("search"),
		Sort:        database.Sort(q.Get("sort")),
		Page:        page,
		PerPage:     perPage,
	}

	if raw := q.Get("cache_files"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.CacheFiles = append(opts.CacheFiles, name)
			}
		}
	}

	return opts
}

// ListThumbnails returns a filtered, sorted, paginated listing of indexed
// thumbnails without image payloads.
func (h *Handlers) ListThumbnails(w http.ResponseWriter, r *http.Request) {
	opts := h.queryOptionsFromRequest(r)

	summaries, total, err := h.db.Query(r.Context(), opts)
	if err != nil {
		logging.Error("thumbnail listing failed: %v", err)
		writeJSONError(w, "internal_error", "failed to query thumbnails", http.StatusInternalServerError)
		return
	}

	if summaries == nil {
		summaries = []*database.RecordSummary{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + opts.PerPage - 1) / opts.PerPage
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listResponse{
		Thumbnails: summaries,
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetThumbnail serves a single thumbnail image as PNG.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "bad_request", "invalid thumbnail id", http.StatusBadRequest)
		return
	}

	data, err := h.db.GetDataByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "not_found", fmt.Sprintf("thumbnail %d not found", id), http.StatusNotFound)
			return
		}
		logging.Error("failed to load thumbnail %d: %v", id, err)
		writeJSONError(w, "internal_error", "failed to load thumbnail", http.StatusInternalServerError)
		return
	}

	png := media.Normalize(data)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(png); err != nil {
		logging.Debug("failed to write thumbnail %d response: %v", id, err)
	}
}

// GetThumbnailInfo returns the metadata for a single thumbnail.
func (h *Handlers) GetThumbnailInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "bad_request", "invalid thumbnail id", http.StatusBadRequest)
		return
	}

	rec, err := h.db.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "not_found", fmt.Sprintf("thumbnail %d not found", id), http.StatusNotFound)
			return
		}
		logging.Error("failed to load thumbnail info %d: %v", id, err)
		writeJSONError(w, "internal_error", "failed to load thumbnail info", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec.Summary())
}
