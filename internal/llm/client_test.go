package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/timeline"
	"github.com/snarg/clip-engine/internal/transcribe"
)

func testTranscript() *timeline.Transcript {
	return &timeline.Transcript{
		Text:     "hello world this matters",
		Language: "en",
		Duration: 30,
		Segments: []timeline.Segment{
			{ID: "segment-0", Text: "hello world", Start: 0, End: 2, Duration: 2},
			{ID: "segment-1", Text: "this matters", Start: 2, End: 5, Duration: 3},
		},
	}
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func newTestClient(baseURL string, retry RetryPolicy) *Client {
	return New(Options{
		APIKey:  "sk-test-secret",
		BaseURL: baseURL,
		Model:   "test/model",
		Timeout: time.Second,
		Retry:   retry,
		Log:     zerolog.Nop(),
	})
}

func TestClient_ProposeClips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test-secret" {
			t.Errorf("Authorization = %q", got)
		}

		content := "Sure, here you go:\n```json\n" +
			`[{"videoId":"v1","sourceId":"src-1","startTime":1.5,"endTime":4.25,"transcriptText":"hello world"}]` +
			"\n```"
		w.Write([]byte(completionBody(content)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, quickRetry(1))
	cands, err := c.ProposeClips(context.Background(), "src-1", testTranscript(), 5)
	if err != nil {
		t.Fatalf("ProposeClips: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}
	want := timeline.ClipCandidate{SourceID: "src-1", Start: 1.5, End: 4.25, Text: "hello world"}
	if cands[0] != want {
		t.Errorf("candidate = %+v, want %+v", cands[0], want)
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody(`[{"sourceId":"src-1","startTime":1,"endTime":2,"transcriptText":"x"}]`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, quickRetry(3))
	cands, err := c.ProposeClips(context.Background(), "src-1", testTranscript(), 5)
	if err != nil {
		t.Fatalf("ProposeClips: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(cands) != 1 {
		t.Errorf("candidates = %d, want 1", len(cands))
	}
}

func TestClient_QuotaErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "insufficient credits, key sk-test-secret rejected", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, quickRetry(3))
	_, err := c.ProposeClips(context.Background(), "src-1", testTranscript(), 5)

	var svcErr *transcribe.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	if svcErr.Category != transcribe.CategoryQuota {
		t.Errorf("Category = %q, want quota", svcErr.Category)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (quota is not retryable)", calls.Load())
	}
	if strings.Contains(svcErr.Message, "sk-test-secret") {
		t.Errorf("API key leaked into error message: %q", svcErr.Message)
	}
}

func TestClient_MaxClipsCapsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`[
			{"sourceId":"s","startTime":1,"endTime":2,"transcriptText":"a"},
			{"sourceId":"s","startTime":5,"endTime":6,"transcriptText":"b"},
			{"sourceId":"s","startTime":9,"endTime":10,"transcriptText":"c"}
		]`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, quickRetry(1))
	cands, err := c.ProposeClips(context.Background(), "s", testTranscript(), 2)
	if err != nil {
		t.Fatalf("ProposeClips: %v", err)
	}
	if len(cands) != 2 {
		t.Errorf("candidates = %d, want 2", len(cands))
	}
}

func TestClient_EmptyInputsShortCircuit(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0", quickRetry(1))

	cands, err := c.ProposeClips(context.Background(), "s", testTranscript(), 0)
	if err != nil || cands != nil {
		t.Errorf("maxClips=0: got (%v, %v), want (nil, nil)", cands, err)
	}

	empty := &timeline.Transcript{}
	cands, err = c.ProposeClips(context.Background(), "s", empty, 5)
	if err != nil || cands != nil {
		t.Errorf("empty transcript: got (%v, %v), want (nil, nil)", cands, err)
	}
}

func TestRedactSecrets(t *testing.T) {
	in := `Authorization: Bearer abc123, api_key=xyz789, raw sk-test-secret`
	out := redactSecrets(in, "sk-test-secret")
	for _, leaked := range []string{"abc123", "xyz789", "sk-test-secret"} {
		if strings.Contains(out, leaked) {
			t.Errorf("redactSecrets left %q in %q", leaked, out)
		}
	}
}
