// Package cache is the document cache in front of every archive fetch. It keeps
// page content forever once fetched; the first writer for a URL wins.
package cache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/metrics"
)

// Cache wraps a DocumentStore with metrics and logging.
type Cache struct {
	store  hansard.DocumentStore
	logger *zap.Logger
}

// New constructs a Cache over store.
func New(store hansard.DocumentStore, logger *zap.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}, nil
}

// Get returns the cached content for url. A miss is found=false, not an error.
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	content, found, err := c.store.Get(ctx, url)
	if err != nil {
		metrics.ObserveCacheLookup("error")
		return "", false, fmt.Errorf("cache get %s: %w", url, err)
	}
	if found {
		metrics.ObserveCacheLookup("hit")
	} else {
		metrics.ObserveCacheLookup("miss")
	}
	return content, found, nil
}

// Put stores content for url unless another writer got there first.
func (c *Cache) Put(ctx context.Context, url, content string) error {
	inserted, err := c.store.PutIfAbsent(ctx, url, content)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", url, err)
	}
	if !inserted {
		c.logger.Debug("document already cached", zap.String("url", url))
	}
	return nil
}
