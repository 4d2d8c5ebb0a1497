// Package redis caches archive pages as plain Redis string keys.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces cached document keys.
const DefaultPrefix = "hansard:doc:"

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}
	return client, nil
}

// DocumentStore keeps one key per URL with no expiry.
type DocumentStore struct {
	client redis.Cmdable
	prefix string
}

// NewDocumentStore wraps client. An empty prefix defaults to DefaultPrefix.
func NewDocumentStore(client redis.Cmdable, prefix string) (*DocumentStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &DocumentStore{client: client, prefix: prefix}, nil
}

// Get returns the cached content for url.
func (s *DocumentStore) Get(ctx context.Context, url string) (string, bool, error) {
	content, err := s.client.Get(ctx, s.prefix+url).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get document: %w", err)
	}
	return content, true, nil
}

// PutIfAbsent stores content with SETNX.
func (s *DocumentStore) PutIfAbsent(ctx context.Context, url string, content string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+url, content, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx document: %w", err)
	}
	return ok, nil
}
