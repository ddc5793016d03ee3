package worker

import (
	"context"
	"time"

	"carshare/internal/models"

	"github.com/rs/zerolog"
)

// Sweeper moves bookings along the time-driven part of the lifecycle.
type Sweeper interface {
	SweepLifecycle(ctx context.Context) (*models.SweepResult, error)
}

// LifecycleWorker runs the sweep on a fixed interval. A failed sweep is
// retried with backoff until MaxRetries, then left for the next tick.
type LifecycleWorker struct {
	sweeper     Sweeper
	interval    time.Duration
	retryPolicy RetryPolicy
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) bool
}

func NewLifecycleWorker(sweeper Sweeper, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *LifecycleWorker {
	if interval <= 0 {
		interval = models.DefaultSweepInterval
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "lifecycle_worker").Logger()
	}

	return &LifecycleWorker{
		sweeper:     sweeper,
		interval:    interval,
		retryPolicy: retry.withDefaults(),
		logger:      l,
		sleep:       sleepContext,
	}
}

// Start sweeps once immediately and then on every tick; stops when ctx is done.
func (w *LifecycleWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("lifecycle worker started")
	defer w.logger.Info().Msg("lifecycle worker stopped")

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep with retries and returns the last result.
func (w *LifecycleWorker) RunOnce(ctx context.Context) (*models.SweepResult, error) {
	var lastErr error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		res, err := w.sweeper.SweepLifecycle(ctx)
		if err == nil {
			if res.Started > 0 || res.Completed > 0 || res.Skipped > 0 {
				w.logger.Info().
					Int("started", res.Started).
					Int("completed", res.Completed).
					Int("skipped", res.Skipped).
					Msg("lifecycle sweep finished")
			}
			return res, nil
		}
		lastErr = err

		if attempt == w.retryPolicy.MaxRetries {
			break
		}
		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("lifecycle sweep failed")
		if !w.sleep(ctx, delay) {
			return nil, ctx.Err()
		}
	}

	w.logger.Error().Err(lastErr).Int("attempts", w.retryPolicy.MaxRetries).Msg("lifecycle sweep gave up until next tick")
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
