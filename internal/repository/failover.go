package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"carshare/internal/domain"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

// FailoverLimiter uses the primary limiter until it errors, then serves from the
// fallback and retries the primary once per recovery interval.
type FailoverLimiter struct {
	primary  domain.RateLimiter
	fallback domain.RateLimiter
	logger   *zerolog.Logger
	recovery time.Duration
	now      func() time.Time

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLimiter(primary, fallback domain.RateLimiter, logger *zerolog.Logger) *FailoverLimiter {
	return &FailoverLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		recovery: defaultRecoveryInterval,
		now:      time.Now,
	}
}

// Degraded reports whether requests are currently served by the fallback.
func (r *FailoverLimiter) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.recoveryDue() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Msg("Primary rate limiter recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary rate limiter failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.Allow(ctx, key, limit, window)
}

func (r *FailoverLimiter) recoveryDue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.now().Sub(r.lastCheck) <= r.recovery {
		return false
	}
	r.lastCheck = r.now()
	return true
}

func (r *FailoverLimiter) markChecked() {
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

var _ domain.RateLimiter = (*FailoverLimiter)(nil)
