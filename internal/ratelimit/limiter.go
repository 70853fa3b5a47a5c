// Package ratelimit throttles outbound catalog calls to a fixed request budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/malirobot/musiclinks/internal/metrics"
)

// Limiter enforces a requests-per-minute budget. Acquire blocks the caller
// just long enough that issuing another call never exceeds the budget. The
// baseline traversal is single-caller; acquisition is nevertheless atomic so
// the limiter stays correct if concurrent workers are introduced.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	limit   rate.Limit
	burst   int
}

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
}

// New creates a Limiter. A non-positive budget disables throttling.
func New(cfg Config) *Limiter {
	r := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	if cfg.RequestsPerMinute <= 0 {
		r = rate.Inf
	}
	return &Limiter{
		limiter: rate.NewLimiter(r, 1),
		limit:   r,
		burst:   1,
	}
}

// Acquire blocks until the next request is allowed or the context ends.
// It returns the delay that was imposed.
func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	l.mu.Lock()
	lim := l.limiter
	l.mu.Unlock()

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}
	delay := time.Since(start)
	if delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(delay)
	}
	return delay, nil
}

// Reset clears the accumulated window, allowing the next call immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = rate.NewLimiter(l.limit, l.burst)
}
