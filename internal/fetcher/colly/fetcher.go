// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodySize   int
}

// Fetcher implements hansard.Fetcher using the Colly collector. Any HTTP status
// is returned as a response; only transport failures become errors.
type Fetcher struct {
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Settings stored on the shared backend (transport and
// timeout) are applied once here because clones share it.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.WithTransport(newRobotsTransport(newHTTPTransport()))
	c.SetRequestTimeout(timeout)

	return &Fetcher{baseCollector: c}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, url string) (hansard.FetchResponse, error) {
	var (
		result   hansard.FetchResponse
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	configureCollectorHooks(collector, time.Now(), &result, &fetchErr)

	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		return hansard.FetchResponse{}, err
	}
	return result, nil
}

func configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *hansard.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		resp := hansard.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		if r.Headers != nil {
			resp.Headers = r.Headers.Clone()
		}
		*result = resp
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
