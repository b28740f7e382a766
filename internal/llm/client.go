package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/timeline"
	"github.com/snarg/clip-engine/internal/transcribe"
)

// ErrProposalTimeout reports that the model never answered within the
// request timeout. Distinct from malformed-output failures so callers can
// retry.
var ErrProposalTimeout = errors.New("clip proposal did not complete within the timeout")

const defaultModel = "anthropic/claude-3.5-sonnet"

// Options configures the clip proposal client.
type Options struct {
	APIKey  string
	BaseURL string // e.g. https://openrouter.ai
	Model   string
	Timeout time.Duration
	Gate    Gate
	Retry   RetryPolicy
	Log     zerolog.Logger
}

// Client asks a chat-completions model to propose clip boundaries from an
// assembled transcript. Every candidate it returns is still untrusted input
// for the scheduler.
type Client struct {
	key     string
	model   string
	baseURL string
	timeout time.Duration
	gate    Gate
	retry   RetryPolicy
	client  *http.Client
	log     zerolog.Logger
}

// New creates a proposal client.
func New(opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	gate := opts.Gate
	if gate == nil {
		gate = NopGate{}
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		key:     opts.APIKey,
		model:   model,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: timeout,
		gate:    gate,
		retry:   retry,
		client:  &http.Client{Timeout: 5 * time.Minute},
		log:     opts.Log,
	}
}

// clipProposal is the wire schema exchanged with the model: string ids and
// text, numeric times in seconds with 2 decimals. Times are decoded
// tolerantly since models occasionally quote numbers.
type clipProposal struct {
	VideoID        string `json:"videoId"`
	SourceID       string `json:"sourceId"`
	StartTime      any    `json:"startTime"`
	EndTime        any    `json:"endTime"`
	TranscriptText string `json:"transcriptText"`
}

// ProposeClips asks the model for up to maxClips extraction ranges over the
// transcript. The returned candidates preserve the model's proposal order.
func (c *Client) ProposeClips(ctx context.Context, sourceID string, tr *timeline.Transcript, maxClips int) ([]timeline.ClipCandidate, error) {
	if maxClips <= 0 || len(tr.Segments) == 0 {
		return nil, nil
	}

	body, err := c.buildRequest(sourceID, tr, maxClips)
	if err != nil {
		return nil, err
	}

	var cands []timeline.ClipCandidate
	err = c.retry.Do(ctx, func() error {
		if err := c.gate.Wait(ctx); err != nil {
			return err
		}
		out, err := c.complete(ctx, body)
		if err != nil {
			return err
		}
		cands = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(cands) > maxClips {
		cands = cands[:maxClips]
	}
	return cands, nil
}

func (c *Client) buildRequest(sourceID string, tr *timeline.Transcript, maxClips int) ([]byte, error) {
	type promptSegment struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	segs := make([]promptSegment, len(tr.Segments))
	for i, s := range tr.Segments {
		segs[i] = promptSegment{Start: s.Start, End: s.End, Text: s.Text}
	}
	segJSON, err := json.Marshal(map[string]any{
		"sourceId": sourceID,
		"duration": tr.Duration,
		"maxClips": maxClips,
		"segments": segs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal prompt: %w", err)
	}

	prompt := "Select the most compelling clip ranges from the transcript below. " +
		"Return strictly valid JSON (no markdown, no code fences): an array of objects with " +
		"string \"videoId\", string \"sourceId\", string \"transcriptText\", and numeric " +
		"\"startTime\" and \"endTime\" in seconds with 2 decimal places. " +
		"Keep clips in transcript order and do not overlap them." +
		"\n\nTranscript JSON:\n" + string(segJSON)

	payload := map[string]any{
		"model":  c.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name": "clip_proposals",
				"schema": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"videoId":        map[string]any{"type": "string"},
							"sourceId":       map[string]any{"type": "string"},
							"startTime":      map[string]any{"type": "number"},
							"endTime":        map[string]any{"type": "number"},
							"transcriptText": map[string]any{"type": "string"},
						},
						"required": []string{"videoId", "sourceId", "startTime", "endTime", "transcriptText"},
					},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func (c *Client) complete(ctx context.Context, body []byte) ([]timeline.ClipCandidate, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("model %s after %s: %w", c.model, c.timeout, ErrProposalTimeout)
		}
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &transcribe.ServiceError{
			Provider: "openrouter",
			Category: transcribe.Categorize(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  truncate(redactSecrets(string(respBody), c.key), 400),
		}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	content, err := messageContent(raw.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return parseProposals(content)
}

// parseProposals turns raw model output into typed candidates. Entries with
// an unusable id or non-numeric times are skipped, not fatal: the rest of
// the batch stays usable.
func parseProposals(content string) ([]timeline.ClipCandidate, error) {
	arr, err := ExtractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var proposals []clipProposal
	if err := json.Unmarshal([]byte(arr), &proposals); err != nil {
		return nil, fmt.Errorf("decode proposals: %w", err)
	}

	cands := make([]timeline.ClipCandidate, 0, len(proposals))
	for _, p := range proposals {
		id := p.SourceID
		if id == "" {
			id = p.VideoID
		}
		start, okS := timeline.Number(p.StartTime)
		end, okE := timeline.Number(p.EndTime)
		if id == "" || !okS || !okE {
			continue
		}
		cands = append(cands, timeline.ClipCandidate{
			SourceID: id,
			Start:    timeline.Round2(start),
			End:      timeline.Round2(end),
			Text:     strings.TrimSpace(p.TranscriptText),
		})
	}
	return cands, nil
}

func messageContent(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("empty message content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("unexpected content type %T", v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
