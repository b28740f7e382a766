package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/clip-engine/internal/database"
	"github.com/snarg/clip-engine/internal/metrics"
	"github.com/snarg/clip-engine/internal/storage"
	"github.com/snarg/clip-engine/internal/timeline"
)

// MediaTool covers the ffmpeg operations the render worker needs.
type MediaTool interface {
	Extract(ctx context.Context, source string, start, end float64, outPath string) error
	Concatenate(ctx context.Context, clipPaths []string, outPath string) error
}

// EventPublishFunc is a callback for publishing render progress events.
type EventPublishFunc func(eventType, jobID string, payload map[string]any)

// RenderPoolOptions configures the render worker pool.
type RenderPoolOptions struct {
	DB           *database.DB
	Store        storage.ObjectStore
	Tool         MediaTool
	JobTimeout   time.Duration
	Workers      int
	QueueSize    int
	PublishEvent EventPublishFunc
	Log          zerolog.Logger
}

// RenderStats reports the current state of the render queue.
type RenderStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// RenderPool renders scheduled clip jobs into concatenated output videos.
type RenderPool struct {
	jobs   chan string
	db     *database.DB
	opts   RenderPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	stopped   atomic.Bool
}

// NewRenderPool creates a render worker pool.
func NewRenderPool(opts RenderPoolOptions) *RenderPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &RenderPool{
		jobs:   make(chan string, opts.QueueSize),
		db:     opts.DB,
		opts:   opts,
		log:    opts.Log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (rp *RenderPool) Start() {
	for i := 0; i < rp.opts.Workers; i++ {
		rp.wg.Add(1)
		go rp.worker(i)
	}
	rp.log.Info().
		Int("workers", rp.opts.Workers).
		Int("queue_size", rp.opts.QueueSize).
		Msg("render worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (rp *RenderPool) Stop() {
	rp.stopped.Store(true)
	close(rp.jobs)
	rp.wg.Wait()
	rp.cancel()
	rp.log.Info().
		Int64("completed", rp.completed.Load()).
		Int64("failed", rp.failed.Load()).
		Msg("render worker pool stopped")
}

// Enqueue adds a job id to the render queue. Returns false if the queue is
// full or the pool has stopped.
func (rp *RenderPool) Enqueue(jobID string) bool {
	if rp.stopped.Load() {
		return false
	}
	select {
	case rp.jobs <- jobID:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (rp *RenderPool) Stats() RenderStats {
	return RenderStats{
		Pending:   len(rp.jobs),
		Completed: rp.completed.Load(),
		Failed:    rp.failed.Load(),
	}
}

func (rp *RenderPool) worker(id int) {
	defer rp.wg.Done()
	log := rp.log.With().Int("worker", id).Logger()

	for jobID := range rp.jobs {
		if err := rp.processJob(log, jobID); err != nil {
			rp.failed.Add(1)
			metrics.RendersTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("job_id", jobID).Msg("render failed")
		} else {
			rp.completed.Add(1)
			metrics.RendersTotal.WithLabelValues("completed").Inc()
		}
	}
}

func (rp *RenderPool) processJob(log zerolog.Logger, jobID string) error {
	started := time.Now()
	ctx, cancel := context.WithTimeout(rp.ctx, rp.opts.JobTimeout)
	defer cancel()

	job, err := rp.db.GetClipJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	var clips []timeline.ScheduledClip
	if err := json.Unmarshal(job.Clips, &clips); err != nil {
		return rp.fail(jobID, fmt.Errorf("decode clips: %w", err))
	}
	if len(clips) == 0 {
		return rp.fail(jobID, fmt.Errorf("job has no scheduled clips"))
	}

	if err := rp.db.UpdateJobStatus(ctx, jobID, database.JobRendering, ""); err != nil {
		return fmt.Errorf("mark rendering: %w", err)
	}
	rp.publish("render.started", jobID, map[string]any{"clips": len(clips)})

	plan, err := timeline.BuildRenderPlan(clips, rp.resolver(ctx))
	if err != nil {
		return rp.fail(jobID, err)
	}

	tmpDir, err := os.MkdirTemp("", "render-"+jobID+"-*")
	if err != nil {
		return rp.fail(jobID, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	clipPaths := make([]string, 0, len(plan.Extractions))
	total := 0.0
	for i, ex := range plan.Extractions {
		out := filepath.Join(tmpDir, fmt.Sprintf("clip-%03d.mp4", i))
		if err := rp.opts.Tool.Extract(ctx, ex.Locator, ex.Start, ex.End, out); err != nil {
			return rp.fail(jobID, fmt.Errorf("extract clip %d: %w", i, err))
		}
		clipPaths = append(clipPaths, out)
		total += ex.End - ex.Start
	}

	finalPath := filepath.Join(tmpDir, "render.mp4")
	if err := rp.opts.Tool.Concatenate(ctx, clipPaths, finalPath); err != nil {
		return rp.fail(jobID, fmt.Errorf("concatenate: %w", err))
	}

	key := fmt.Sprintf("artifacts/%s/%s.mp4", time.Now().UTC().Format("2006-01-02"), jobID)
	url, err := rp.opts.Store.Put(ctx, finalPath, key, "video/mp4")
	if err != nil {
		return rp.fail(jobID, fmt.Errorf("store artifact: %w", err))
	}

	artifact := &database.RenderArtifact{
		ID:         uuid.NewString(),
		JobID:      jobID,
		StorageKey: key,
		Duration:   &total,
	}
	if url != "" {
		artifact.URL = &url
	}
	if info, err := os.Stat(finalPath); err == nil {
		size := info.Size()
		artifact.SizeBytes = &size
	}
	if err := rp.db.InsertArtifact(ctx, artifact); err != nil {
		return rp.fail(jobID, fmt.Errorf("record artifact: %w", err))
	}

	elapsed := time.Since(started)
	rp.publish("render.completed", jobID, map[string]any{
		"artifact_id": artifact.ID,
		"storage_key": key,
		"duration":    total,
		"elapsed_ms":  elapsed.Milliseconds(),
	})
	log.Info().
		Str("job_id", jobID).
		Int("clips", len(clipPaths)).
		Float64("duration", total).
		Dur("elapsed", elapsed).
		Msg("render complete")
	return nil
}

// resolver maps a source id to something ffmpeg can open: a local file for
// uploads (or a presigned URL when only S3 has it), the original locator for
// remote references.
func (rp *RenderPool) resolver(ctx context.Context) func(string) (string, bool) {
	return func(sourceID string) (string, bool) {
		src, err := rp.db.GetMediaSource(ctx, sourceID)
		if err != nil {
			return "", false
		}
		if src.Origin == database.OriginRemote {
			return src.Locator, true
		}
		if path := rp.opts.Store.LocalPath(src.Locator); path != "" {
			return path, true
		}
		if url, err := rp.opts.Store.URL(ctx, src.Locator); err == nil && url != "" {
			return url, true
		}
		return "", false
	}
}

// fail records the terminal failed state. UnresolvedSource keeps its
// identity in the recorded reason.
func (rp *RenderPool) fail(jobID string, cause error) error {
	reason := cause.Error()
	var unresolved *timeline.UnresolvedSourceError
	if errors.As(cause, &unresolved) {
		reason = fmt.Sprintf("media source %s could not be resolved", unresolved.SourceID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rp.db.UpdateJobStatus(ctx, jobID, database.JobFailed, reason); err != nil {
		rp.log.Error().Err(err).Str("job_id", jobID).Msg("failed to record failure status")
	}
	rp.publish("render.failed", jobID, map[string]any{"reason": reason})
	return cause
}

func (rp *RenderPool) publish(eventType, jobID string, payload map[string]any) {
	if rp.opts.PublishEvent == nil {
		return
	}
	rp.opts.PublishEvent(eventType, jobID, payload)
}
