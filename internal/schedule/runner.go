package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/biot9999/newtdata/internal/config"
	"github.com/biot9999/newtdata/internal/logger"
)

// RunFunc cleans one account. The runner calls it for every pending
// queue entry on each tick.
type RunFunc func(ctx context.Context, account string) error

// Runner drains the account queue on a cron schedule.
type Runner struct {
	cron    *cron.Cron
	spec    string
	queue   *Queue
	run     RunFunc
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewRunner creates a runner from the schedule configuration. The cron
// clock runs in the configured timezone, defaulting to UTC.
func NewRunner(cfg config.ScheduleConfig, run RunFunc, log *logger.Logger) (*Runner, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule timezone %s: %w", cfg.Timezone, err)
		}
	}

	queue, err := LoadQueue(cfg.QueueFile)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   cfg.Cron,
		queue:  queue,
		run:    run,
		logger: log,
	}, nil
}

// Start registers the schedule and starts the cron clock. It returns
// immediately; ticks fire on the cron goroutine.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	if _, err := r.cron.AddFunc(r.spec, func() {
		if err := r.RunOnce(r.ctx); err != nil {
			r.logger.Error("scheduled cleanup tick failed", err)
		}
	}); err != nil {
		r.cancel()
		return fmt.Errorf("invalid cron expression %q: %w", r.spec, err)
	}

	r.started = true
	r.cron.Start()
	r.logger.Info("cleanup scheduler started",
		logger.Field{Key: "cron", Value: r.spec})
	return nil
}

// Stop stops the cron clock and waits for a running tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}
	r.cancel()
	<-r.cron.Stop().Done()
	r.started = false
	r.logger.Info("cleanup scheduler stopped")
}

// RunOnce drains the pending queue sequentially. Each cleaned account
// is stamped in the queue file; a failed account stays pending for the
// next tick. Stops early when ctx is cancelled.
func (r *Runner) RunOnce(ctx context.Context) error {
	pending := r.queue.Pending()
	if len(pending) == 0 {
		r.logger.Debug("cleanup queue empty, nothing to do")
		return nil
	}

	r.logger.Info("draining cleanup queue",
		logger.Field{Key: "pending", Value: len(pending)})

	var firstErr error
	for _, account := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := r.run(ctx, account); err != nil {
			r.logger.Error("cleanup failed for account", err,
				logger.Field{Key: "account", Value: account})
			if firstErr == nil {
				firstErr = fmt.Errorf("cleanup of %s failed: %w", account, err)
			}
			continue
		}

		if err := r.queue.MarkCleaned(account); err != nil {
			r.logger.Error("failed to update cleanup queue", err,
				logger.Field{Key: "account", Value: account})
		}
	}
	return firstErr
}
