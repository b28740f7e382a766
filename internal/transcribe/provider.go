package transcribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/snarg/clip-engine/internal/timeline"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, locator string, opts Opts) (*Result, error)
	Name() string  // "whisper", "scribe", "captions"
	Model() string // model identifier for DB/logs
}

// Opts are per-request options common to providers.
type Opts struct {
	Language string
}

// Result is the common transcription result from any provider. Segments are
// raw: timestamps keep the provider's shape and denomination, declared via
// Unit, and are normalized downstream.
type Result struct {
	Text     string
	Language string
	Duration float64 // media duration in seconds, 0 if unreported
	Unit     timeline.Unit
	Segments []timeline.RawSegment
}

// ErrTranscriptionTimeout reports that a provider never finished within the
// polling bound. Distinct from malformed-data failures so callers can retry.
var ErrTranscriptionTimeout = errors.New("transcription did not complete within the timeout")

// ServiceError is a categorized upstream failure (rate limit, quota, content
// policy) with enough detail for the caller to decide retry vs abort.
type ServiceError struct {
	Provider string
	Category string // "rate-limit", "quota", "content-policy", "upstream"
	Status   int
	Message  string
}

const (
	CategoryRateLimit     = "rate-limit"
	CategoryQuota         = "quota"
	CategoryContentPolicy = "content-policy"
	CategoryUpstream      = "upstream"
)

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Category, e.Status, e.Message)
}

// Retryable reports whether the failure is worth an automatic retry.
func (e *ServiceError) Retryable() bool {
	return e.Category == CategoryRateLimit
}

// Categorize maps an HTTP status to an error category.
func Categorize(status int) string {
	switch status {
	case 429:
		return CategoryRateLimit
	case 402, 403:
		return CategoryQuota
	case 422:
		return CategoryContentPolicy
	default:
		return CategoryUpstream
	}
}
