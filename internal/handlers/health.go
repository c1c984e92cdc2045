package handlers

import (
	"net/http"
	"runtime"
	"time"

	"thumbindex/internal/logging"
	"thumbindex/internal/media"
	"thumbindex/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	Indexing         bool   `json:"indexing"`
	LastIndexed      string `json:"lastIndexed,omitempty"`
	SourceAvailable  bool   `json:"sourceAvailable"`
	DecoderAvailable bool   `json:"decoderAvailable"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalThumbnails int `json:"totalThumbnails"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:           statusHealthy,
		Version:          startup.Version,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
		Indexing:         h.reindexer.IsIndexing(),
		SourceAvailable:  h.source.Available(),
		DecoderAvailable: media.IsVipsAvailable(),
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}

	count, err := h.db.GetIndexedCount(r.Context())
	if err != nil {
		logging.Warn("health check database probe failed: %v", err)
		response.Status = statusDegraded
	} else {
		response.TotalThumbnails = count
	}

	if lastIndexed, err := h.db.GetLastIndexed(r.Context()); err == nil && !lastIndexed.IsZero() {
		response.LastIndexed = lastIndexed.Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status == statusDegraded {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the database is answering queries
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := h.db.GetIndexedCount(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
