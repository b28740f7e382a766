package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/database"
)

// TranscriptsHandler serves stored transcripts.
type TranscriptsHandler struct {
	db  *database.DB
	log zerolog.Logger
}

func NewTranscriptsHandler(db *database.DB, log zerolog.Logger) *TranscriptsHandler {
	return &TranscriptsHandler{db: db, log: log.With().Str("handler", "transcripts").Logger()}
}

// Routes registers transcript routes on the given router.
func (h *TranscriptsHandler) Routes(r chi.Router) {
	r.Get("/sources/{id}/transcript", h.Get)
}

// Get handles GET /api/v1/sources/{id}/transcript. The response carries the
// validated segments and any repair diagnostics recorded at transcription
// time.
func (h *TranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.db.GetTranscript(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "no transcript for this media source")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("source_id", id).Msg("get transcript failed")
		WriteError(w, http.StatusInternalServerError, "loading transcript failed")
		return
	}
	WriteJSON(w, http.StatusOK, row)
}
