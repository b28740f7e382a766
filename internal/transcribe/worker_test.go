package transcribe

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeProvider struct {
	result *Result
	err    error
}

func (f *fakeProvider) Transcribe(_ context.Context, _ string, _ Opts) (*Result, error) {
	return f.result, f.err
}
func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func newTestPool(workers, queueSize int) *WorkerPool {
	return NewWorkerPool(WorkerPoolOptions{
		Provider:   &fakeProvider{},
		Workers:    workers,
		QueueSize:  queueSize,
		JobTimeout: time.Minute,
		Log:        zerolog.Nop(),
	})
}

func TestNewWorkerPool(t *testing.T) {
	wp := newTestPool(4, 100)
	if wp == nil {
		t.Fatal("NewWorkerPool returned nil")
	}
	if cap(wp.jobs) != 100 {
		t.Errorf("queue capacity = %d, want 100", cap(wp.jobs))
	}
}

func TestWorkerPool_EnqueueBeforeStart(t *testing.T) {
	wp := newTestPool(2, 5)
	// Enqueue works before Start(), it just buffers
	ok := wp.Enqueue(Job{SourceID: "a"})
	if !ok {
		t.Error("Enqueue should return true when queue has space")
	}
}

func TestWorkerPool_EnqueueFull(t *testing.T) {
	wp := newTestPool(0, 2) // 0 workers = nobody draining

	wp.Enqueue(Job{SourceID: "a"})
	wp.Enqueue(Job{SourceID: "b"})

	// Queue is full (cap=2), third enqueue should return false
	ok := wp.Enqueue(Job{SourceID: "c"})
	if ok {
		t.Error("Enqueue should return false when queue is full")
	}
}

func TestWorkerPool_EnqueueAfterStop(t *testing.T) {
	wp := newTestPool(1, 10)
	wp.Start()
	wp.Stop()

	ok := wp.Enqueue(Job{SourceID: "a"})
	if ok {
		t.Error("Enqueue should return false after Stop()")
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	wp := newTestPool(0, 10) // 0 workers so nothing drains

	wp.Enqueue(Job{SourceID: "a"})
	wp.Enqueue(Job{SourceID: "b"})

	stats := wp.Stats()
	if stats.Pending != 2 {
		t.Errorf("Pending = %d, want 2", stats.Pending)
	}
	if stats.Completed != 0 {
		t.Errorf("Completed = %d, want 0", stats.Completed)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}
}
