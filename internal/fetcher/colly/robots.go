package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/hansard-crawler/internal/metrics"
)

const robotsAllowAll = "User-agent: *\nAllow: /"

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport retries robots.txt probes that time out and falls back to an
// allow-all policy once the retries run out. Other requests pass straight through.
type robotsTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
}

func newRobotsTransport(base http.RoundTripper) *robotsTransport {
	return &robotsTransport{base: base, backoff: robotsRetryBackoff}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if !isRobotsTxtRequest(req) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("robots transport base roundtrip: %w", err)
		}
		return resp, nil
	}
	return t.roundTripWithRetry(req)
}

func (t *robotsTransport) roundTripWithRetry(req *http.Request) (*http.Response, error) {
	maxAttempts := len(t.backoff) + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !isTransientTLSError(err) {
			return nil, fmt.Errorf("robots roundtrip non-transient: %w", err)
		}
		if attempt == maxAttempts-1 {
			metrics.ObserveRobotsFallback()
			return syntheticRobotsAllowAllResponse(req), nil
		}
		if err := sleepWithContext(req.Context(), t.backoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots roundtrip backoff sleep: %w", err)
		}
	}
	return nil, fmt.Errorf("robots roundtrip exhausted retries")
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots backoff sleep context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func syntheticRobotsAllowAllResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(robotsAllowAll)),
		ContentLength: int64(len(robotsAllowAll)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransientTLSError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
