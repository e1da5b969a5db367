package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultTimeout    = 600 * time.Second
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 400 * time.Millisecond
)

var (
	// ErrNotConfigured is returned without any network attempt.
	ErrNotConfigured = errors.New("AI is not configured yet")
	ErrEmptyReply    = errors.New("AI gateway returned no content")
	ErrClientClosed  = errors.New("AI client is closed")
)

// UpstreamError wraps the last failure once retries are exhausted.
type UpstreamError struct {
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("AI request failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transport performs a single chat attempt.
type Transport interface {
	Send(ctx context.Context, req Request) (string, error)
	Configured() bool
	Name() string
}

type Config struct {
	// Timeout bounds each attempt. Zero disables it.
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	// RequestsPerMinute throttles attempts across callers. Zero disables it.
	RequestsPerMinute int
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRetryable
	outcomeTerminal
)

type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// next decides, after attempt number attempt (1-based) ended with class,
// whether to try again and how long to wait first.
func (p retryPolicy) next(attempt int, class outcome) (time.Duration, bool) {
	if class != outcomeRetryable || attempt > p.maxRetries {
		return 0, false
	}
	return p.baseDelay * time.Duration(attempt), true
}

// classify treats caller cancellation as terminal and everything else as retryable.
func classify(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case ctx.Err() != nil:
		return outcomeTerminal
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrClientClosed):
		return outcomeTerminal
	default:
		return outcomeRetryable
	}
}

// Client sends a bounded conversation window with per-attempt timeout and linear retry.
type Client struct {
	transport Transport
	policy    retryPolicy
	timeout   time.Duration
	throttle  *throttle
	logger    *log.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewClient(transport Transport, cfg Config, logger *log.Logger) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	c := &Client{
		transport: transport,
		policy:    retryPolicy{maxRetries: cfg.MaxRetries, baseDelay: cfg.BaseDelay},
		timeout:   cfg.Timeout,
		logger:    logger,
		sleep:     sleepContext,
	}
	if cfg.RequestsPerMinute > 0 {
		c.throttle = newThrottle(cfg.RequestsPerMinute)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.transport != nil && c.transport.Configured()
}

// Close wakes attempts waiting on the request throttle. Later attempts fail with ErrClientClosed.
func (c *Client) Close() {
	if c.throttle != nil {
		c.throttle.close()
	}
}

func (c *Client) Chat(ctx context.Context, messages []Message, meta Meta) (string, error) {
	if !c.Configured() {
		c.logger.Warn("AI gateway not configured")
		return "", ErrNotConfigured
	}

	req := Request{Messages: messages, Meta: meta}
	for attempt := 1; ; attempt++ {
		started := time.Now()
		c.logger.Info("AI chat start", "attempt", attempt, "transport", c.transport.Name(), "message_count", len(messages))

		reply, err := c.attempt(ctx, req)
		class := classify(ctx, err)
		if class == outcomeOK {
			c.logger.Info("AI chat success", "attempt", attempt, "duration", time.Since(started))
			return reply, nil
		}
		c.logger.Error("AI chat failure", "attempt", attempt, "error", err)

		delay, retry := c.policy.next(attempt, class)
		if !retry {
			return "", &UpstreamError{Attempts: attempt, Err: err}
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", &UpstreamError{Attempts: attempt, Err: err}
		}
	}
}

func (c *Client) attempt(ctx context.Context, req Request) (string, error) {
	if c.throttle != nil {
		if err := c.throttle.wait(ctx); err != nil {
			return "", err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.transport.Send(ctx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
