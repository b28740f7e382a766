package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/snarg/clip-engine/internal/timeline"
)

// ScribeClient calls a hosted submit/poll speech-to-text API
// (AssemblyAI-shaped). Implements the Provider interface.
//
// The submitted locator must be a URL the service can fetch. Word timestamps
// come back denominated in milliseconds; segments are synthesized from word
// gaps since the API reports a flat word list.
type ScribeClient struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	pollTimeout  time.Duration
	client       *http.Client
}

type scribeSubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type scribePollResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"` // "queued", "processing", "completed", "error"
	Text          string       `json:"text"`
	LanguageCode  string       `json:"language_code"`
	AudioDuration float64      `json:"audio_duration"` // seconds
	Words         []scribeWord `json:"words"`
	Error         string       `json:"error"`
}

type scribeWord struct {
	Text       string   `json:"text"`
	Start      float64  `json:"start"` // milliseconds
	End        float64  `json:"end"`   // milliseconds
	Confidence *float64 `json:"confidence"`
	Speaker    string   `json:"speaker"`
}

// segmentGapMs is the inter-word silence that starts a new segment.
const segmentGapMs = 800

// NewScribeClient creates a hosted STT client.
func NewScribeClient(apiKey, baseURL string, pollInterval, pollTimeout time.Duration) *ScribeClient {
	return &ScribeClient{
		apiKey:       apiKey,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name.
func (sc *ScribeClient) Name() string { return "scribe" }

// Model returns the provider's model identifier.
func (sc *ScribeClient) Model() string { return "best" }

// Transcribe submits the media URL and polls until completion or timeout.
// A poll loop that outlives pollTimeout returns ErrTranscriptionTimeout so
// callers can distinguish "never finished" from "returned malformed data".
func (sc *ScribeClient) Transcribe(ctx context.Context, locator string, opts Opts) (*Result, error) {
	jobID, err := sc.submit(ctx, locator, opts)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(sc.pollTimeout)
	ticker := time.NewTicker(sc.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("job %s: %w", jobID, ErrTranscriptionTimeout)
			}

			poll, err := sc.poll(ctx, jobID)
			if err != nil {
				return nil, err
			}

			switch poll.Status {
			case "completed":
				return sc.result(poll), nil
			case "error":
				return nil, &ServiceError{
					Provider: "scribe",
					Category: CategoryUpstream,
					Message:  poll.Error,
				}
			}
			// queued / processing: keep polling
		}
	}
}

func (sc *ScribeClient) submit(ctx context.Context, mediaURL string, opts Opts) (string, error) {
	payload := map[string]any{"audio_url": mediaURL}
	if opts.Language != "" {
		payload["language_code"] = opts.Language
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Authorization", sc.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scribe submit: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{
			Provider: "scribe",
			Category: Categorize(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(respBody),
		}
	}

	var submit scribeSubmitResponse
	if err := json.Unmarshal(respBody, &submit); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if submit.ID == "" {
		return "", fmt.Errorf("scribe submit returned no job id")
	}
	return submit.ID, nil
}

func (sc *ScribeClient) poll(ctx context.Context, jobID string) (*scribePollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.baseURL+"/v2/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", sc.apiKey)

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scribe poll: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			Provider: "scribe",
			Category: Categorize(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(respBody),
		}
	}

	var poll scribePollResponse
	if err := json.Unmarshal(respBody, &poll); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &poll, nil
}

// result converts a completed poll into the common Result, grouping the flat
// ms-denominated word list into segments at silence gaps and speaker turns.
func (sc *ScribeClient) result(poll *scribePollResponse) *Result {
	return &Result{
		Text:     poll.Text,
		Language: poll.LanguageCode,
		Duration: poll.AudioDuration,
		Unit:     timeline.UnitMilliseconds,
		Segments: groupWords(poll.Words),
	}
}

func groupWords(words []scribeWord) []timeline.RawSegment {
	if len(words) == 0 {
		return nil
	}

	var segs []timeline.RawSegment
	var cur timeline.RawSegment
	var curEnd float64
	text := ""

	flush := func() {
		if text == "" {
			return
		}
		cur.Text = text
		cur.End = curEnd
		segs = append(segs, cur)
	}

	for i, w := range words {
		turn := i > 0 && (w.Start-curEnd >= segmentGapMs || w.Speaker != cur.Speaker)
		if i == 0 || turn {
			flush()
			cur = timeline.RawSegment{
				Start:      w.Start,
				Speaker:    w.Speaker,
				Confidence: w.Confidence,
			}
			text = w.Text
		} else {
			text += " " + w.Text
		}
		curEnd = w.End
		cur.Words = append(cur.Words, timeline.RawWord{Text: w.Text, Start: w.Start, End: w.End})
	}
	flush()

	return segs
}
