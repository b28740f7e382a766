package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/storage"
	"github.com/snarg/clip-engine/internal/transcribe"
)

// DurationProber reads a media container duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, source string) (float64, error)
}

// TranscribeQueue accepts transcription jobs.
type TranscribeQueue interface {
	Enqueue(transcribe.Job) bool
}

// EventPublisher pushes a progress event onto the SSE bus.
type EventPublisher func(eventType, sourceID, jobID string, payload any)

// SourcesHandler manages media source registration and transcription requests.
type SourcesHandler struct {
	db        *database.DB
	store     storage.ObjectStore
	prober    DurationProber
	queue     TranscribeQueue
	publish   EventPublisher
	maxUpload int64
	log       zerolog.Logger
}

// NewSourcesHandler creates a sources handler. maxUploadBytes bounds the
// multipart upload size.
func NewSourcesHandler(db *database.DB, store storage.ObjectStore, prober DurationProber, queue TranscribeQueue, publish EventPublisher, maxUploadBytes int64, log zerolog.Logger) *SourcesHandler {
	return &SourcesHandler{
		db:        db,
		store:     store,
		prober:    prober,
		queue:     queue,
		publish:   publish,
		maxUpload: maxUploadBytes,
		log:       log.With().Str("handler", "sources").Logger(),
	}
}

// Routes registers source routes on the given router.
func (h *SourcesHandler) Routes(r chi.Router) {
	r.Post("/sources", h.Upload)
	r.Post("/sources/remote", h.RegisterRemote)
	r.Get("/sources", h.List)
	r.Get("/sources/{id}", h.Get)
	r.Post("/sources/{id}/transcribe", h.RequestTranscription)
}

// Upload handles POST /api/v1/sources: a multipart upload with the video in
// the "media" field.
func (h *SourcesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("media")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing media file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".mp4"
	}

	// Stage to a temp file so ffprobe can inspect it before storage.
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "staging upload failed")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		WriteError(w, http.StatusBadRequest, "reading upload failed")
		return
	}
	tmp.Close()

	duration, err := h.prober.ProbeDuration(r.Context(), tmpPath)
	if err != nil {
		WriteErrorDetail(w, http.StatusUnprocessableEntity, "media is not readable", err.Error())
		return
	}

	id := uuid.NewString()
	key := fmt.Sprintf("uploads/%s/%s%s", time.Now().UTC().Format("2006-01-02"), id, ext)
	if _, err := h.store.Put(r.Context(), tmpPath, key, header.Header.Get("Content-Type")); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("storing upload failed")
		WriteError(w, http.StatusInternalServerError, "storing upload failed")
		return
	}

	src := &database.MediaSource{
		ID:       id,
		Owner:    r.FormValue("owner"),
		Origin:   database.OriginUpload,
		Locator:  key,
		Duration: &duration,
		Status:   database.SourceIngested,
	}
	if err := h.db.InsertMediaSource(r.Context(), src); err != nil {
		h.log.Error().Err(err).Msg("insert media source failed")
		WriteError(w, http.StatusInternalServerError, "saving media source failed")
		return
	}

	h.publish("source.ingested", id, "", map[string]any{"origin": src.Origin, "duration": duration})
	WriteJSON(w, http.StatusCreated, src)
}

// RegisterRemote handles POST /api/v1/sources/remote: registers a video by
// URL without downloading it. The locator must be directly readable by the
// media tool at render time.
func (h *SourcesHandler) RegisterRemote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string   `json:"url"`
		Owner    string   `json:"owner"`
		Duration *float64 `json:"duration,omitempty"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		WriteError(w, http.StatusBadRequest, "url must be http or https")
		return
	}

	src := &database.MediaSource{
		ID:       uuid.NewString(),
		Owner:    req.Owner,
		Origin:   database.OriginRemote,
		Locator:  req.URL,
		Duration: req.Duration,
		Status:   database.SourceIngested,
	}
	if err := h.db.InsertMediaSource(r.Context(), src); err != nil {
		h.log.Error().Err(err).Msg("insert media source failed")
		WriteError(w, http.StatusInternalServerError, "saving media source failed")
		return
	}

	h.publish("source.ingested", src.ID, "", map[string]any{"origin": src.Origin})
	WriteJSON(w, http.StatusCreated, src)
}

// List handles GET /api/v1/sources.
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources, err := h.db.ListMediaSources(r.Context(), p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list media sources failed")
		WriteError(w, http.StatusInternalServerError, "listing media sources failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources)})
}

// Get handles GET /api/v1/sources/{id}.
func (h *SourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := h.db.GetMediaSource(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "media source not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("source_id", id).Msg("get media source failed")
		WriteError(w, http.StatusInternalServerError, "loading media source failed")
		return
	}
	WriteJSON(w, http.StatusOK, src)
}

// RequestTranscription handles POST /api/v1/sources/{id}/transcribe.
// Re-requesting replaces any prior transcript when the new run completes.
func (h *SourcesHandler) RequestTranscription(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := h.db.GetMediaSource(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "media source not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "loading media source failed")
		return
	}
	if src.Status == database.SourceTranscribing {
		WriteError(w, http.StatusConflict, "transcription already in progress")
		return
	}

	if !h.queue.Enqueue(transcribe.Job{SourceID: src.ID, Origin: src.Origin, Locator: src.Locator}) {
		WriteError(w, http.StatusServiceUnavailable, "transcription queue is full")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"source_id": src.ID, "queued": true})
}
