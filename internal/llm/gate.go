package llm

import (
	"context"
	"sync"
	"time"
)

// Gate paces outbound requests. Implementations must be safe for concurrent
// use; every request through the client waits on the gate first.
type Gate interface {
	Wait(ctx context.Context) error
}

// NopGate never delays. Used in tests and when pacing is disabled.
type NopGate struct{}

func (NopGate) Wait(context.Context) error { return nil }

// FixedDelayGate enforces a minimum interval between requests. Concurrent
// callers queue behind each other: each reserves the next slot under the
// lock, then sleeps outside it.
type FixedDelayGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewFixedDelayGate creates a gate with the given minimum interval.
func NewFixedDelayGate(interval time.Duration) *FixedDelayGate {
	return &FixedDelayGate{interval: interval}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
func (g *FixedDelayGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := time.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
