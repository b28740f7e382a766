package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/llm"
	"github.com/snarg/clip-engine/internal/metrics"
	"github.com/snarg/clip-engine/internal/timeline"
	"github.com/snarg/clip-engine/internal/transcribe"
)

// ClipProposer asks a model for clip boundaries over a transcript.
type ClipProposer interface {
	ProposeClips(ctx context.Context, sourceID string, tr *timeline.Transcript, maxClips int) ([]timeline.ClipCandidate, error)
}

// RenderQueue accepts render jobs.
type RenderQueue interface {
	Enqueue(jobID string) bool
}

// ClipsHandler schedules clip batches and triggers renders.
type ClipsHandler struct {
	db       *database.DB
	proposer ClipProposer
	renders  RenderQueue
	sched    timeline.SchedulerConfig
	publish  EventPublisher
	log      zerolog.Logger
}

func NewClipsHandler(db *database.DB, proposer ClipProposer, renders RenderQueue, sched timeline.SchedulerConfig, publish EventPublisher, log zerolog.Logger) *ClipsHandler {
	return &ClipsHandler{
		db:       db,
		proposer: proposer,
		renders:  renders,
		sched:    sched,
		publish:  publish,
		log:      log.With().Str("handler", "clips").Logger(),
	}
}

// Routes registers clip routes on the given router.
func (h *ClipsHandler) Routes(r chi.Router) {
	r.Post("/clips/schedule", h.Schedule)
	r.Get("/clips/{id}", h.Get)
	r.Post("/clips/{id}/render", h.Render)
}

type scheduleRequest struct {
	Candidates []timeline.ClipCandidate `json:"candidates"`
	SourceID   string                   `json:"sourceId"`
	MaxClips   int                      `json:"maxClips"`
}

type scheduleResponse struct {
	JobID    string                   `json:"jobId"`
	Clips    []timeline.ScheduledClip `json:"clips"`
	Rejected []timeline.Rejection     `json:"rejected"`
}

// Schedule handles POST /api/v1/clips/schedule. Callers either supply
// candidates directly or name a transcribed source and let the model propose
// them. A batch with some unschedulable candidates still succeeds; the drops
// are reported per candidate.
func (h *ClipsHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	candidates := req.Candidates
	if len(candidates) == 0 {
		if req.SourceID == "" {
			WriteError(w, http.StatusBadRequest, "provide candidates or a sourceId")
			return
		}
		proposed, ok := h.propose(w, r, req)
		if !ok {
			return
		}
		candidates = proposed
	}
	if len(candidates) == 0 {
		WriteError(w, http.StatusUnprocessableEntity, "no clip candidates to schedule")
		return
	}

	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			ids = append(ids, c.SourceID)
		}
	}
	durations, err := h.db.SourceDurations(r.Context(), ids)
	if err != nil {
		h.log.Error().Err(err).Msg("loading source durations failed")
		WriteError(w, http.StatusInternalServerError, "loading source durations failed")
		return
	}

	result := timeline.Schedule(candidates, durations, h.sched)
	metrics.ClipsScheduledTotal.Add(float64(len(result.Clips)))
	metrics.ClipsRejectedTotal.Add(float64(len(result.Rejected)))

	clipsJSON, err := json.Marshal(result.Clips)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "encoding timeline failed")
		return
	}
	var rejectedJSON json.RawMessage
	if len(result.Rejected) > 0 {
		rejectedJSON, _ = json.Marshal(result.Rejected)
	}

	job := &database.ClipJob{
		ID:       uuid.NewString(),
		Status:   database.JobScheduled,
		Clips:    clipsJSON,
		Rejected: rejectedJSON,
	}
	if err := h.db.InsertClipJob(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("insert clip job failed")
		WriteError(w, http.StatusInternalServerError, "saving clip job failed")
		return
	}

	h.publish("clips.scheduled", "", job.ID, map[string]any{
		"clips":    len(result.Clips),
		"rejected": result.Rejected,
	})
	WriteJSON(w, http.StatusCreated, scheduleResponse{
		JobID:    job.ID,
		Clips:    result.Clips,
		Rejected: result.Rejected,
	})
}

// propose loads the transcript and asks the model for candidates. Writes the
// error response itself and returns ok=false on failure.
func (h *ClipsHandler) propose(w http.ResponseWriter, r *http.Request, req scheduleRequest) ([]timeline.ClipCandidate, bool) {
	if h.proposer == nil {
		WriteError(w, http.StatusServiceUnavailable, "clip proposal not configured")
		return nil, false
	}

	row, err := h.db.GetTranscript(r.Context(), req.SourceID)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "no transcript for this media source")
		return nil, false
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "loading transcript failed")
		return nil, false
	}

	var segments []timeline.Segment
	if err := json.Unmarshal(row.Segments, &segments); err != nil {
		WriteError(w, http.StatusInternalServerError, "stored transcript is unreadable")
		return nil, false
	}
	tr := &timeline.Transcript{
		Text:     row.Text,
		Language: row.Language,
		Duration: row.Duration,
		Segments: segments,
	}

	maxClips := req.MaxClips
	if maxClips <= 0 {
		maxClips = 5
	}

	cands, err := h.proposer.ProposeClips(r.Context(), req.SourceID, tr, maxClips)
	if err != nil {
		h.writeUpstreamError(w, err)
		return nil, false
	}
	return cands, true
}

// writeUpstreamError maps collaborator failures onto HTTP statuses.
func (h *ClipsHandler) writeUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, llm.ErrProposalTimeout) {
		WriteErrorDetail(w, http.StatusGatewayTimeout, "clip proposal timed out", err.Error())
		return
	}
	var svcErr *transcribe.ServiceError
	if errors.As(err, &svcErr) {
		status := http.StatusBadGateway
		switch svcErr.Category {
		case transcribe.CategoryRateLimit:
			status = http.StatusTooManyRequests
		case transcribe.CategoryQuota:
			status = http.StatusPaymentRequired
		case transcribe.CategoryContentPolicy:
			status = http.StatusUnprocessableEntity
		}
		WriteErrorDetail(w, status, "clip proposal failed", svcErr.Error())
		return
	}
	h.log.Error().Err(err).Msg("clip proposal failed")
	WriteErrorDetail(w, http.StatusBadGateway, "clip proposal failed", err.Error())
}

// Get handles GET /api/v1/clips/{id}: the job, its timeline and any
// artifacts.
func (h *ClipsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.db.GetClipJob(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "clip job not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "loading clip job failed")
		return
	}

	artifacts, err := h.db.JobArtifacts(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "loading artifacts failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job": job, "artifacts": artifacts})
}

// Render handles POST /api/v1/clips/{id}/render.
func (h *ClipsHandler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.db.GetClipJob(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "clip job not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "loading clip job failed")
		return
	}
	if job.Status == database.JobRendering {
		WriteError(w, http.StatusConflict, "render already in progress")
		return
	}
	if job.Status == database.JobDone {
		WriteError(w, http.StatusConflict, "job already rendered")
		return
	}

	if !h.renders.Enqueue(job.ID) {
		WriteError(w, http.StatusServiceUnavailable, "render queue is full")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "queued": true})
}
