package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/jobs"
	"github.com/snarg/clip-engine/internal/transcribe"
)

// WatcherStatusData mirrors the inbox watcher's runtime state for the health
// endpoint.
type WatcherStatusData struct {
	Status        string `json:"status"`
	InboxDir      string `json:"inbox_dir"`
	FilesIngested int64  `json:"files_ingested"`
	FilesSkipped  int64  `json:"files_skipped"`
}

// LiveDataSource exposes runtime state from the background components for the
// health endpoint. Any of its results may be nil when the component is not
// running.
type LiveDataSource interface {
	WatcherStatus() *WatcherStatusData
	TranscribeStats() *transcribe.QueueStats
	RenderStats() *jobs.RenderStats
}

type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]string      `json:"checks"`
	Transcription *transcribe.QueueStats `json:"transcription,omitempty"`
	Renders       *jobs.RenderStats      `json:"renders,omitempty"`
	Watcher       *WatcherStatusData     `json:"watcher,omitempty"`
}

type HealthHandler struct {
	db        *database.DB
	live      LiveDataSource
	version   string
	startTime time.Time
}

func NewHealthHandler(db *database.DB, live LiveDataSource, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		live:      live,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	resp := HealthResponse{
		Version: h.version,
		Checks:  checks,
	}

	if h.live != nil {
		if ws := h.live.WatcherStatus(); ws != nil {
			checks["inbox_watcher"] = ws.Status
			resp.Watcher = ws
			if ws.Status == "error" && status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["inbox_watcher"] = "not_configured"
		}
		if ts := h.live.TranscribeStats(); ts != nil {
			checks["transcription"] = "ok"
			resp.Transcription = ts
		} else {
			checks["transcription"] = "not_configured"
		}
		if rs := h.live.RenderStats(); rs != nil {
			checks["renders"] = "ok"
			resp.Renders = rs
		} else {
			checks["renders"] = "not_configured"
		}
	}

	resp.Status = status
	resp.UptimeSeconds = int64(time.Since(h.startTime).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
