package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type nopTool struct{}

func (nopTool) Extract(context.Context, string, float64, float64, string) error { return nil }
func (nopTool) Concatenate(context.Context, []string, string) error             { return nil }

func newTestRenderPool(workers, queueSize int) *RenderPool {
	return NewRenderPool(RenderPoolOptions{
		Tool:       nopTool{},
		Workers:    workers,
		QueueSize:  queueSize,
		JobTimeout: time.Minute,
		Log:        zerolog.Nop(),
	})
}

func TestNewRenderPool(t *testing.T) {
	rp := newTestRenderPool(2, 50)
	if rp == nil {
		t.Fatal("NewRenderPool returned nil")
	}
	if cap(rp.jobs) != 50 {
		t.Errorf("queue capacity = %d, want 50", cap(rp.jobs))
	}
}

func TestRenderPool_EnqueueFull(t *testing.T) {
	rp := newTestRenderPool(0, 1) // 0 workers = nobody draining

	if !rp.Enqueue("job-1") {
		t.Error("first Enqueue should succeed")
	}
	if rp.Enqueue("job-2") {
		t.Error("Enqueue should return false when queue is full")
	}
}

func TestRenderPool_EnqueueAfterStop(t *testing.T) {
	rp := newTestRenderPool(1, 10)
	rp.Start()
	rp.Stop()

	if rp.Enqueue("job-1") {
		t.Error("Enqueue should return false after Stop()")
	}
}

func TestRenderPool_Stats(t *testing.T) {
	rp := newTestRenderPool(0, 10)

	rp.Enqueue("job-1")
	rp.Enqueue("job-2")

	stats := rp.Stats()
	if stats.Pending != 2 {
		t.Errorf("Pending = %d, want 2", stats.Pending)
	}
	if stats.Completed != 0 || stats.Failed != 0 {
		t.Errorf("counters = %d/%d, want 0/0", stats.Completed, stats.Failed)
	}
}
