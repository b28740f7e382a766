package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/metrics"
	"github.com/snarg/clip-engine/internal/timeline"
)

// Job is one transcription request for a media source.
type Job struct {
	SourceID string
	Origin   string // database.OriginUpload or database.OriginRemote
	Locator  string // storage key for uploads, URL for remote references
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// EventPublishFunc is a callback for publishing progress events.
type EventPublishFunc func(eventType, sourceID string, payload map[string]any)

// MediaResolver maps an upload's storage key to a local file path the
// provider binary/endpoint can read. Returns "" when unavailable.
type MediaResolver interface {
	LocalPath(key string) string
}

// WorkerPoolOptions configures the transcription worker pool.
type WorkerPoolOptions struct {
	DB           *database.DB
	Provider     Provider
	Resolver     MediaResolver
	Language     string
	JobTimeout   time.Duration
	Workers      int
	QueueSize    int
	PublishEvent EventPublishFunc
	Log          zerolog.Logger
}

// WorkerPool manages transcription workers.
type WorkerPool struct {
	jobs   chan Job
	db     *database.DB
	opts   WorkerPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	stopped   atomic.Bool
}

// NewWorkerPool creates a new transcription worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:   make(chan Job, opts.QueueSize),
		db:     opts.DB,
		opts:   opts,
		log:    opts.Log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().
		Int("workers", wp.opts.Workers).
		Int("queue_size", wp.opts.QueueSize).
		Str("provider", wp.opts.Provider.Name()).
		Msg("transcription worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (wp *WorkerPool) Stop() {
	wp.stopped.Store(true)
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("transcription worker pool stopped")
}

// Enqueue adds a job to the transcription queue. Returns false if the queue
// is full or the pool has stopped.
func (wp *WorkerPool) Enqueue(j Job) bool {
	if wp.stopped.Load() {
		return false
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		if err := wp.processJob(log, job); err != nil {
			wp.failed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(wp.opts.Provider.Name(), "failed").Inc()
			log.Warn().Err(err).Str("source_id", job.SourceID).Msg("transcription failed")
		} else {
			wp.completed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(wp.opts.Provider.Name(), "completed").Inc()
		}
	}
}

func (wp *WorkerPool) processJob(log zerolog.Logger, job Job) error {
	started := time.Now()
	ctx, cancel := context.WithTimeout(wp.ctx, wp.opts.JobTimeout)
	defer cancel()

	if err := wp.db.UpdateSourceStatus(ctx, job.SourceID, database.SourceTranscribing, ""); err != nil {
		return fmt.Errorf("mark transcribing: %w", err)
	}
	wp.publish("transcription.started", job.SourceID, nil)

	locator := job.Locator
	if job.Origin == database.OriginUpload {
		path := wp.opts.Resolver.LocalPath(locator)
		if path == "" {
			return wp.fail(job, fmt.Errorf("media file not found for key %q", locator))
		}
		locator = path
	}

	res, err := wp.opts.Provider.Transcribe(ctx, locator, Opts{Language: wp.opts.Language})
	if err != nil {
		return wp.fail(job, err)
	}

	// The recorded duration (if probed at ingest) wins over the provider's
	// report for clamping, since it came from the actual media container.
	mediaDur := res.Duration
	if src, err := wp.db.GetMediaSource(ctx, job.SourceID); err == nil && src.Duration != nil {
		mediaDur = *src.Duration
	}

	segments, diags := timeline.ValidateSegments(res.Segments, mediaDur, res.Unit)
	metrics.SegmentRepairsTotal.Add(float64(len(diags)))
	transcript, err := timeline.Assemble(segments, res.Duration, res.Language)
	if err != nil {
		return wp.fail(job, err)
	}

	segJSON, err := json.Marshal(transcript.Segments)
	if err != nil {
		return wp.fail(job, fmt.Errorf("marshal segments: %w", err))
	}
	var diagJSON json.RawMessage
	if len(diags) > 0 {
		diagJSON, _ = json.Marshal(diags)
	}

	var model *string
	if m := wp.opts.Provider.Model(); m != "" {
		model = &m
	}
	row := &database.TranscriptRow{
		SourceID:    job.SourceID,
		Text:        transcript.Text,
		Language:    transcript.Language,
		Duration:    transcript.Duration,
		Provider:    wp.opts.Provider.Name(),
		Model:       model,
		Segments:    segJSON,
		Diagnostics: diagJSON,
	}
	if err := wp.db.ReplaceTranscript(ctx, row); err != nil {
		return wp.fail(job, fmt.Errorf("store transcript: %w", err))
	}

	elapsed := time.Since(started)
	wp.publish("transcription.completed", job.SourceID, map[string]any{
		"segments":   len(transcript.Segments),
		"repairs":    len(diags),
		"duration":   transcript.Duration,
		"language":   transcript.Language,
		"elapsed_ms": elapsed.Milliseconds(),
	})

	log.Debug().
		Str("source_id", job.SourceID).
		Int("segments", len(transcript.Segments)).
		Int("repairs", len(diags)).
		Dur("elapsed", elapsed).
		Msg("transcription complete")

	return nil
}

// fail records the terminal failed state with a human-readable reason and
// returns the original error. Timeouts keep their distinct identity.
func (wp *WorkerPool) fail(job Job, cause error) error {
	reason := cause.Error()
	if errors.Is(cause, ErrTranscriptionTimeout) {
		reason = "transcription timed out"
	} else if errors.Is(cause, timeline.ErrEmptyTranscript) {
		reason = "transcript is empty"
	}

	// Status writes get their own context: the job context may already be
	// cancelled or expired, and the failure must still be recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wp.db.UpdateSourceStatus(ctx, job.SourceID, database.SourceFailed, reason); err != nil {
		wp.log.Error().Err(err).Str("source_id", job.SourceID).Msg("failed to record failure status")
	}
	wp.publish("transcription.failed", job.SourceID, map[string]any{"reason": reason})
	return cause
}

func (wp *WorkerPool) publish(eventType, sourceID string, payload map[string]any) {
	if wp.opts.PublishEvent == nil {
		return
	}
	wp.opts.PublishEvent(eventType, sourceID, payload)
}
