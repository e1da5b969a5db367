package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 20

// Handler processes one update. Panics are recovered and logged by the poller.
type Handler func(ctx context.Context, update Update)

type updatesSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller long-polls getUpdates and dispatches each update on its own goroutine,
// at most concurrency at a time.
type Poller struct {
	source      updatesSource
	logger      *log.Logger
	concurrency int
	pollTimeout time.Duration
	newBackOff  func() backoff.BackOff
}

func NewPoller(source updatesSource, logger *log.Logger, concurrency int) *Poller {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Poller{
		source:      source,
		logger:      logger,
		concurrency: concurrency,
		pollTimeout: PollTimeout,
		newBackOff:  defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 20 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Run blocks until ctx is done, then waits for in-flight handlers.
func (p *Poller) Run(ctx context.Context, handler Handler) error {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	bo := p.newBackOff()
	var offset int64

	p.logger.Info("Starting update polling", "concurrency", p.concurrency)
	for ctx.Err() == nil {
		updates, err := p.source.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := bo.NextBackOff()
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
				wait = apiErr.RetryAfter
			}
			p.logger.Error("Polling failed", "error", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				break
			}
			continue
		}
		bo.Reset()

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			update := update
			g.Go(func() error {
				p.dispatch(ctx, handler, update)
				return nil
			})
		}
	}

	p.logger.Info("Stopping update polling, waiting for handlers")
	return g.Wait()
}

func (p *Poller) dispatch(ctx context.Context, handler Handler, update Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Update handler panicked",
				"update_id", update.UpdateID,
				"error", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(ctx, update)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
