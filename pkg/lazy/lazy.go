// Package lazy provides a single-flight, retry-on-failure lazily initialized value.
package lazy

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultInitTimeout bounds a single init attempt.
const DefaultInitTimeout = 30 * time.Second

// ErrReset is returned to callers of an attempt that was invalidated by Reset.
var ErrReset = errors.New("lazy: value reset during initialization")

type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Value holds a T produced by init on first use. Concurrent callers during
// initialization share one in-flight attempt. A failed attempt is not cached.
//
// The attempt runs detached from the caller's cancellation, so a caller that
// gives up does not fail the others waiting on the same attempt.
type Value[T any] struct {
	init    func(ctx context.Context) (T, error)
	discard func(T)
	timeout time.Duration

	mu    sync.Mutex
	state State
	value T
	gen   uint64
	group singleflight.Group
}

func New[T any](init func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{init: init, timeout: DefaultInitTimeout}
}

// WithTimeout bounds each init attempt. Zero disables the bound.
func (v *Value[T]) WithTimeout(d time.Duration) *Value[T] {
	v.timeout = d
	return v
}

// WithDiscard releases values produced by an attempt that Reset invalidated.
func (v *Value[T]) WithDiscard(fn func(T)) *Value[T] {
	v.discard = fn
	return v
}

// Get returns the cached value, or runs init once for all concurrent callers.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	var zero T

	v.mu.Lock()
	if v.state == StateReady {
		val := v.value
		v.mu.Unlock()
		return val, nil
	}
	v.state = StateConnecting
	key := strconv.FormatUint(v.gen, 10)
	v.mu.Unlock()

	ch := v.group.DoChan(key, func() (any, error) {
		return v.run(ctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (v *Value[T]) run(ctx context.Context) (any, error) {
	v.mu.Lock()
	if v.state == StateReady {
		val := v.value
		v.mu.Unlock()
		return val, nil
	}
	gen := v.gen
	v.mu.Unlock()

	initCtx := context.WithoutCancel(ctx)
	if v.timeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(initCtx, v.timeout)
		defer cancel()
	}
	val, err := v.init(initCtx)

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		if err == nil && v.discard != nil {
			v.discard(val)
		}
		return nil, ErrReset
	}
	defer v.mu.Unlock()
	if err != nil {
		v.state = StateFailed
		return nil, err
	}
	v.value = val
	v.state = StateReady
	return val, nil
}

// Peek returns the value only if it is already initialized.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateReady {
		var zero T
		return zero, false
	}
	return v.value, true
}

func (v *Value[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Reset drops the cached value and returns it so the caller can release it.
// An attempt still in flight is invalidated; its value goes to the discard hook.
func (v *Value[T]) Reset() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	old, had := v.value, v.state == StateReady
	var zero T
	v.value = zero
	v.state = StateUninitialized
	v.gen++
	return old, had
}
