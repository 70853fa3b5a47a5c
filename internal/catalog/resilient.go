package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/metrics"
	"github.com/malirobot/musiclinks/internal/ratelimit"
)

// RetryConfig controls the backoff schedule for transient failures.
// Delay for attempt n is InitialBackoff * Multiplier^n, capped at MaxBackoff.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
}

// DefaultRetryConfig matches the catalog service's published guidance.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		Multiplier:     2,
		MaxBackoff:     60 * time.Second,
	}
}

func (c RetryConfig) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive, got %s", c.InitialBackoff)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %g", c.Multiplier)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max backoff %s is below initial backoff %s", c.MaxBackoff, c.InitialBackoff)
	}
	return nil
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.InitialBackoff) * pow(c.Multiplier, attempt))
	if d > c.MaxBackoff || d <= 0 {
		return c.MaxBackoff
	}
	return d
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

// ResilientClient layers rate limiting, transient retry and session renewal
// on top of a raw API. It owns the current session: callers never see
// authentication.
type ResilientClient struct {
	api     API
	limiter *ratelimit.Limiter
	retry   RetryConfig
	logger  *zap.Logger

	mu      sync.Mutex
	session Session

	requests atomic.Int64
	errors   atomic.Int64

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResilientClient wraps api. The first data call authenticates lazily.
func NewResilientClient(api API, limiter *ratelimit.Limiter, retry RetryConfig, logger *zap.Logger) (*ResilientClient, error) {
	if api == nil {
		return nil, fmt.Errorf("api is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if err := retry.validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResilientClient{
		api:     api,
		limiter: limiter,
		retry:   retry,
		logger:  logger,
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Requests reports how many calls reached the upstream service, counting
// each retry attempt separately.
func (r *ResilientClient) Requests() int64 { return r.requests.Load() }

// Errors reports how many calls ultimately failed after retries.
func (r *ResilientClient) Errors() int64 { return r.errors.Load() }

// GetArtist fetches one artist, retrying transient failures.
func (r *ResilientClient) GetArtist(ctx context.Context, id string) (Artist, error) {
	var artist Artist
	err := r.do(ctx, "get_artist", func(ctx context.Context, s Session) error {
		var err error
		artist, err = r.api.GetArtist(ctx, s, id)
		return err
	})
	if err != nil {
		return Artist{}, err
	}
	return artist, nil
}

// GetReleasePage fetches one page of an artist's releases.
func (r *ResilientClient) GetReleasePage(ctx context.Context, artistID string, page int) (ReleasePage, error) {
	var rp ReleasePage
	err := r.do(ctx, "get_release_page", func(ctx context.Context, s Session) error {
		var err error
		rp, err = r.api.GetReleasePage(ctx, s, artistID, page)
		return err
	})
	if err != nil {
		return ReleasePage{}, err
	}
	return rp, nil
}

// GetRelease fetches the full credits of one release.
func (r *ResilientClient) GetRelease(ctx context.Context, id string) (Release, error) {
	var release Release
	err := r.do(ctx, "get_release", func(ctx context.Context, s Session) error {
		var err error
		release, err = r.api.GetRelease(ctx, s, id)
		return err
	})
	if err != nil {
		return Release{}, err
	}
	return release, nil
}

// Search queries the catalog.
func (r *ResilientClient) Search(ctx context.Context, term, kind string) ([]SearchResult, error) {
	var results []SearchResult
	err := r.do(ctx, "search", func(ctx context.Context, s Session) error {
		var err error
		results, err = r.api.Search(ctx, s, term, kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// do runs one logical call: acquire the rate limiter once per attempt,
// retry transient errors up to MaxAttempts, and renew the session at most
// once per call when it expires mid-flight.
func (r *ResilientClient) do(ctx context.Context, op string, call func(context.Context, Session) error) error {
	session, err := r.currentSession(ctx)
	if err != nil {
		r.errors.Add(1)
		metrics.IncCatalogError(op, string(ClassOf(err)))
		return err
	}

	reauthed := false
	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.retry.backoff(attempt - 1)
			r.logger.Debug("retrying catalog call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
			)
			metrics.IncCatalogRetry(op)
			if err := r.sleep(ctx, delay); err != nil {
				r.errors.Add(1)
				return err
			}
		}

		if _, err := r.limiter.Acquire(ctx); err != nil {
			r.errors.Add(1)
			return err
		}
		r.requests.Add(1)
		metrics.IncCatalogRequest(op)

		lastErr = call(ctx, session)
		if lastErr == nil {
			return nil
		}

		switch {
		case IsAuthExpired(lastErr):
			if reauthed {
				// A fresh session rejected again is not recoverable here.
				lastErr = &Error{Op: op, Class: ClassPermanent, Err: lastErr}
				r.errors.Add(1)
				metrics.IncCatalogError(op, string(ClassPermanent))
				return lastErr
			}
			reauthed = true
			session, err = r.renewSession(ctx, session)
			if err != nil {
				r.errors.Add(1)
				metrics.IncCatalogError(op, string(ClassOf(err)))
				return err
			}
			// Renewal does not consume a retry attempt.
			attempt--
		case IsPermanent(lastErr):
			r.errors.Add(1)
			metrics.IncCatalogError(op, string(ClassPermanent))
			return lastErr
		}
		// Transient: loop for another attempt.
	}

	r.errors.Add(1)
	metrics.IncCatalogError(op, string(ClassTransient))
	return fmt.Errorf("%s failed after %d attempts: %w", op, r.retry.MaxAttempts, lastErr)
}

// currentSession returns the cached session, authenticating on first use.
func (r *ResilientClient) currentSession(ctx context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.ID != "" {
		return r.session, nil
	}
	session, err := r.api.Authenticate(ctx)
	if err != nil {
		return Session{}, err
	}
	r.session = session
	return session, nil
}

// renewSession replaces the expired session unless another call already did.
func (r *ResilientClient) renewSession(ctx context.Context, stale Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.ID != "" && r.session.ID != stale.ID {
		return r.session, nil
	}
	r.logger.Info("catalog session expired, re-authenticating")
	session, err := r.api.Authenticate(ctx)
	if err != nil {
		return Session{}, err
	}
	r.session = session
	return session, nil
}
