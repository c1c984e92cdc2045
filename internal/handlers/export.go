package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"thumbindex/internal/database"
	"thumbindex/internal/export"
	"thumbindex/internal/logging"
)

// exportRequest is the body of an export request.
type exportRequest struct {
	IDs []int64 `json:"ids"`
}

// ExportThumbnails exports the requested thumbnails. A single id yields a
// PNG download; multiple ids yield a ZIP archive with metadata reports.
func (h *Handlers) ExportThumbnails(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "bad_request", "invalid JSON body", http.StatusBadRequest)
		return
	}

	if len(req.IDs) == 0 {
		writeJSONError(w, "bad_request", "no thumbnail ids provided", http.StatusBadRequest)
		return
	}
	if len(req.IDs) > h.exporter.MaxCount() {
		writeJSONError(w, "bad_request",
			fmt.Sprintf("too many thumbnails requested (max %d)", h.exporter.MaxCount()),
			http.StatusBadRequest)
		return
	}

	if len(req.IDs) == 1 {
		h.exportSingle(w, r, req.IDs[0])
		return
	}
	h.exportArchive(w, r, req.IDs)
}

func (h *Handlers) exportSingle(w http.ResponseWriter, r *http.Request, id int64) {
	png, err := h.exporter.Single(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "not_found", fmt.Sprintf("thumbnail %d not found", id), http.StatusNotFound)
			return
		}
		logging.Error("single export of thumbnail %d failed: %v", id, err)
		writeJSONError(w, "internal_error", "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=thumbnail_%d.png", id))
	if _, err := w.Write(png); err != nil {
		logging.Debug("failed to write export response for thumbnail %d: %v", id, err)
	}
}

func (h *Handlers) exportArchive(w http.ResponseWriter, r *http.Request, ids []int64) {
	archive, err := h.exporter.Archive(r.Context(), ids)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrNoSelection), errors.Is(err, export.ErrTooManySelected):
			writeJSONError(w, "bad_request", err.Error(), http.StatusBadRequest)
		default:
			logging.Error("archive export of %d thumbnails failed: %v", len(ids), err)
			writeJSONError(w, "internal_error", "export failed", http.StatusInternalServerError)
		}
		return
	}

	filename := fmt.Sprintf("thumbnails_export_%s.zip", time.Now().Format("20060102_150405"))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if _, err := w.Write(archive); err != nil {
		logging.Debug("failed to write export archive response: %v", err)
	}
}
