package ai

import (
	"context"
	"sync"
	"time"
)

// throttle spaces chat attempts across all callers of a Client to at most
// perMinute per minute, allowing a burst of perMinute after an idle minute.
// Tokens are computed from elapsed time; nothing runs in the background.
type throttle struct {
	interval time.Duration
	burst    float64
	now      func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time

	closed    chan struct{}
	closeOnce sync.Once
}

func newThrottle(perMinute int) *throttle {
	return &throttle{
		interval: time.Minute / time.Duration(perMinute),
		burst:    float64(perMinute),
		now:      time.Now,
		tokens:   float64(perMinute),
		closed:   make(chan struct{}),
	}
}

// reserve takes a token, possibly one not yet earned, and returns how long
// the caller has to wait before using it.
func (t *throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.last.IsZero() {
		t.tokens = min(t.burst, t.tokens+float64(now.Sub(t.last))/float64(t.interval))
	}
	t.last = now
	t.tokens--
	if t.tokens >= 0 {
		return 0
	}
	return time.Duration(-t.tokens * float64(t.interval))
}

// unreserve hands back a token whose caller stopped waiting.
func (t *throttle) unreserve() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens = min(t.burst, t.tokens+1)
}

func (t *throttle) wait(ctx context.Context) error {
	select {
	case <-t.closed:
		return ErrClientClosed
	default:
	}

	delay := t.reserve()
	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		t.unreserve()
		return ctx.Err()
	case <-t.closed:
		t.unreserve()
		return ErrClientClosed
	}
}

func (t *throttle) close() {
	t.closeOnce.Do(func() { close(t.closed) })
}
