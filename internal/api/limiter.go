package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"carshare/internal/config"
	"carshare/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const clientKeyUnknown = "unknown"

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	limiters sync.Map
	rps      float64
	burst    int
}

func newClientLimiter(cfg config.APIRateLimitConfig) *clientLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &clientLimiter{rps: cfg.RPS, burst: burst}
}

func (l *clientLimiter) enabled() bool {
	return l != nil && l.rps > 0
}

func (l *clientLimiter) Allow(key string) bool {
	if !l.enabled() {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *clientLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return clientKeyUnknown
}

// actionLimiter throttles mutating calls per user across instances.
// Limiter errors let the request through.
type actionLimiter struct {
	limiter domain.RateLimiter
	limit   int
	window  time.Duration
	logger  *zerolog.Logger
}

func newActionLimiter(limiter domain.RateLimiter, cfg config.APIRateLimitConfig, logger *zerolog.Logger) *actionLimiter {
	if limiter == nil || cfg.ActionsPerMin <= 0 {
		return nil
	}
	return &actionLimiter{
		limiter: limiter,
		limit:   cfg.ActionsPerMin,
		window:  cfg.ActionWindow,
		logger:  logger,
	}
}

func (l *actionLimiter) Allow(ctx context.Context, userID string) bool {
	if l == nil {
		return true
	}
	allowed, err := l.limiter.Allow(ctx, "user:"+userID, l.limit, l.window)
	if err != nil {
		l.logger.Warn().Err(err).Str("user_id", userID).Msg("action rate limiter unavailable")
		return true
	}
	return allowed
}
