// Package fetch returns archive page content through the document cache,
// retrying transient failures and telling the requester when a page cannot be
// retrieved at all.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/metrics"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
)

// Outcome labels for fetch metrics.
const (
	outcomeOK        = "ok"
	outcomeCacheHit  = "cache_hit"
	outcomeNotFound  = "not_found"
	outcomeHTTPError = "http_error"
	outcomeTransport = "transport_error"
)

// DocumentCache is the cache the service reads through.
type DocumentCache interface {
	Get(ctx context.Context, url string) (string, bool, error)
	Put(ctx context.Context, url, content string) error
}

// Config tunes the retry policy. A negative Delay means no pause between attempts.
type Config struct {
	Attempts int
	Delay    time.Duration
}

// Service implements hansard.PageSource.
type Service struct {
	cache    DocumentCache
	fetcher  hansard.Fetcher
	policy   hansard.Policy
	notifier hansard.Notifier
	clock    hansard.Clock
	logger   *zap.Logger
	attempts int
	delay    time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithPolicy throttles network fetches through p.
func WithPolicy(p hansard.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock overrides the clock used to stamp notices.
func WithClock(c hansard.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService wires the fetch service.
func NewService(
	cache DocumentCache,
	fetcher hansard.Fetcher,
	notifier hansard.Notifier,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) (*Service, error) {
	if cache == nil {
		return nil, errors.New("document cache is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cache:    cache,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
	}
	if s.attempts <= 0 {
		s.attempts = DefaultAttempts
	}
	if s.delay == 0 {
		s.delay = DefaultDelay
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch returns the content of url. A missing page yields an error matching
// hansard.ErrNotFound; exhausted retries yield an unrecoverable
// *hansard.FetchError after the requester has been notified.
func (s *Service) Fetch(ctx context.Context, url string, fc hansard.FetchContext) (string, error) {
	url = hansard.StripFragment(url)
	logger := s.logger.With(zap.String("url", url), zap.String("handle", fc.Handle))

	content, found, err := s.cache.Get(ctx, url)
	switch {
	case err != nil:
		logger.Warn("document cache lookup failed", zap.Error(err))
	case found:
		metrics.ObserveFetch(url, outcomeCacheHit, 0, 0)
		return content, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if s.policy != nil {
			if err := s.policy.Wait(ctx, url); err != nil {
				return "", fmt.Errorf("fetch %s: %w", url, err)
			}
		}
		resp, err := s.fetcher.Fetch(ctx, url)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch %s: %w", url, ctxErr)
		}
		switch {
		case err != nil:
			metrics.ObserveFetch(url, outcomeTransport, 0, 0)
			lastErr = err
		case resp.StatusCode == http.StatusNotFound:
			metrics.ObserveFetch(url, outcomeNotFound, len(resp.Body), resp.Duration)
			logger.Debug("page not found")
			return "", &hansard.FetchError{Kind: hansard.FetchNotFound, URL: url, Attempts: attempt}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			metrics.ObserveFetch(url, outcomeOK, len(resp.Body), resp.Duration)
			body := string(resp.Body)
			if err := s.cache.Put(ctx, url, body); err != nil {
				logger.Warn("document cache write failed", zap.Error(err))
			}
			return body, nil
		default:
			metrics.ObserveFetch(url, outcomeHTTPError, len(resp.Body), resp.Duration)
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		logger.Warn("fetch attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.attempts),
			zap.Error(lastErr),
		)
		if attempt < s.attempts {
			if err := sleep(ctx, s.delay); err != nil {
				return "", fmt.Errorf("fetch %s: %w", url, err)
			}
		}
	}

	fetchErr := &hansard.FetchError{
		Kind:     hansard.FetchUnrecoverable,
		URL:      url,
		Attempts: s.attempts,
		Err:      lastErr,
	}
	if err := s.notifier.Notify(ctx, s.escalation(fc)); err != nil {
		logger.Error("failed to notify requester about fetch failure", zap.Error(err))
	} else {
		fetchErr.Notified = true
	}
	logger.Error("fetch exhausted retries", zap.Error(fetchErr))
	return "", fetchErr
}

func (s *Service) escalation(fc hansard.FetchContext) hansard.Notice {
	return hansard.Notice{
		Handle: fc.Handle,
		Kind:   hansard.NoticeFetchError,
		Text:   EscalationText(fc),
		At:     s.now(),
	}
}

// EscalationText words the notice sent when a page stays unreachable.
func EscalationText(fc hansard.FetchContext) string {
	if fc.FromDate == "" {
		return "Произошла ошибка при запросе списка персон."
	}
	return fmt.Sprintf("Произошла ошибка при запросе: %s, %s, %s\n\nПовторите попытку.",
		fc.FromDate, fc.ToDate, fc.Keyword)
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
