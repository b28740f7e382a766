package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/snarg/clip-engine/internal/timeline"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
// Implements the Provider interface.
type WhisperClient struct {
	url     string
	model   string
	timeout time.Duration
	client  *http.Client
}

// whisperResponse is the parsed verbose_json response.
type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
	Words    []whisperWord    `json:"words"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewWhisperClient creates a new Whisper HTTP client.
func NewWhisperClient(url, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:     url,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (wc *WhisperClient) Name() string { return "whisper" }

// Model returns the configured model identifier.
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends a media file to the Whisper API and returns the result.
// Uses multipart/form-data with verbose_json for segment and word timestamps.
func (wc *WhisperClient) Transcribe(ctx context.Context, locator string, opts Opts) (*Result, error) {
	f, err := os.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(locator))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy media data: %w", err)
	}

	if wc.model != "" {
		w.WriteField("model", wc.model)
	}

	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	w.WriteField("language", lang)
	w.WriteField("response_format", "verbose_json")
	w.WriteField("timestamp_granularities[]", "word")
	w.WriteField("timestamp_granularities[]", "segment")
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			Provider: "whisper",
			Category: Categorize(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(body),
		}
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Result{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
		Unit:     timeline.UnitSeconds,
		Segments: whisperRawSegments(result),
	}, nil
}

// whisperRawSegments converts the verbose_json layout to raw segments,
// attributing the flat word list to segments by word midpoint.
func whisperRawSegments(resp whisperResponse) []timeline.RawSegment {
	segs := make([]timeline.RawSegment, len(resp.Segments))
	for i, s := range resp.Segments {
		segs[i] = timeline.RawSegment{Text: s.Text, Start: s.Start, End: s.End}
	}

	for _, word := range resp.Words {
		mid := (word.Start + word.End) / 2
		idx := -1
		for i, s := range resp.Segments {
			if mid >= s.Start && mid < s.End {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Fall back to the nearest segment by start, so boundary words
			// are never lost.
			best := 0.0
			for i, s := range resp.Segments {
				d := mid - s.Start
				if d < 0 {
					d = -d
				}
				if idx < 0 || d < best {
					idx, best = i, d
				}
			}
		}
		if idx >= 0 {
			segs[idx].Words = append(segs[idx].Words, timeline.RawWord{
				Text:  word.Word,
				Start: word.Start,
				End:   word.End,
			})
		}
	}

	return segs
}
