package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/snarg/clip-engine/internal/timeline"
)

// CaptionClient fetches caption tracks for remote-referenced videos from a
// caption provider service. Cues carry no word-level data and no confidence.
// Implements the Provider interface.
type CaptionClient struct {
	baseURL string
	client  *http.Client
}

// captionCue is one caption entry; offset and duration are milliseconds.
type captionCue struct {
	Text     string  `json:"text"`
	OffsetMs float64 `json:"offsetMs"`
	DurMs    float64 `json:"durationMs"`
}

type captionResponse struct {
	Language string       `json:"language"`
	Cues     []captionCue `json:"cues"`
}

// NewCaptionClient creates a caption provider client.
func NewCaptionClient(baseURL string, timeout time.Duration) *CaptionClient {
	return &CaptionClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (cc *CaptionClient) Name() string { return "captions" }

// Model returns the provider's model identifier (captions have none).
func (cc *CaptionClient) Model() string { return "" }

// Transcribe fetches the caption track for a video URL or id.
func (cc *CaptionClient) Transcribe(ctx context.Context, locator string, opts Opts) (*Result, error) {
	q := url.Values{"video": {locator}}
	if opts.Language != "" {
		q.Set("lang", opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cc.baseURL+"/captions?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := cc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			Provider: "captions",
			Category: Categorize(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(body),
		}
	}

	var result captionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	segs := make([]timeline.RawSegment, len(result.Cues))
	for i, cue := range result.Cues {
		segs[i] = timeline.RawSegment{
			Text:  cue.Text,
			Start: cue.OffsetMs,
			End:   cue.OffsetMs + cue.DurMs,
		}
	}

	return &Result{
		Language: result.Language,
		Unit:     timeline.UnitMilliseconds,
		Segments: segs,
	}, nil
}
