package api

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/llm"
	"github.com/snarg/clip-engine/internal/transcribe"
)

func TestWriteUpstreamError(t *testing.T) {
	h := &ClipsHandler{log: zerolog.Nop()}

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"timeout", fmt.Errorf("proposing clips: %w", llm.ErrProposalTimeout), 504},
		{"rate_limit", &transcribe.ServiceError{Provider: "openrouter", Category: transcribe.CategoryRateLimit, Status: 429, Message: "slow down"}, 429},
		{"quota", &transcribe.ServiceError{Provider: "openrouter", Category: transcribe.CategoryQuota, Status: 402, Message: "no credits"}, 402},
		{"content_policy", &transcribe.ServiceError{Provider: "openrouter", Category: transcribe.CategoryContentPolicy, Status: 422, Message: "refused"}, 422},
		{"upstream", &transcribe.ServiceError{Provider: "openrouter", Category: transcribe.CategoryUpstream, Status: 500, Message: "broken"}, 502},
		{"unknown", errors.New("boom"), 502},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeUpstreamError(rec, tc.err)
			if rec.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestScheduleRejectsEmptyRequest(t *testing.T) {
	h := &ClipsHandler{log: zerolog.Nop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/clips/schedule", strings.NewReader(`{}`))
	h.Schedule(rec, req)
	if rec.Code != 400 {
		t.Errorf("expected 400 for empty request, got %d", rec.Code)
	}
}

func TestScheduleProposerNotConfigured(t *testing.T) {
	h := &ClipsHandler{log: zerolog.Nop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/clips/schedule",
		strings.NewReader(`{"sourceId":"abc","maxClips":3}`))
	h.Schedule(rec, req)
	if rec.Code != 503 {
		t.Errorf("expected 503 without a proposer, got %d", rec.Code)
	}
}
