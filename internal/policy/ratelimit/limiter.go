// Package ratelimit implements a per-host token bucket so workers sharing the
// archive stay polite.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/hansard-crawler/internal/metrics"
)

// Limiter manages per-domain rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter. A non-positive RPS disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[domain]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Immediate grants are not delays.
	if duration := time.Since(start); duration > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, duration)
	}
	return nil
}
