// Package runner executes named background jobs on a fixed interval.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner drives one task on a ticker until its context is cancelled.
// A failing sweep is logged and retried on the next tick; the loop
// never dies on a task error.
type Runner struct {
	name     string
	interval time.Duration
	task     func(context.Context) error
	log      *slog.Logger

	wg sync.WaitGroup
}

func New(
	log *slog.Logger,
	name string,
	interval time.Duration,
	task func(context.Context) error,
) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		name:     name,
		interval: interval,
		task:     task,
		log:      log,
	}
}

// Start launches the loop and returns immediately. Use Wait to join
// after cancelling the context.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.log.Info("job started", "job", r.name, "interval", r.interval)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info("job stopped", "job", r.name)
				return

			case <-ticker.C:
				if err := r.task(ctx); err != nil {
					r.log.Error("job sweep failed", "job", r.name, "err", err)
				}
			}
		}
	}()
}

// Wait blocks until the loop has observed cancellation and exited.
func (r *Runner) Wait() { r.wg.Wait() }
