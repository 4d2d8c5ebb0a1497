// Package redis keeps the admission ledger in a Redis list so several
// processes can share one queue.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// DefaultKey is the list that holds pending requesters.
const DefaultKey = "celery_user_queue"

const maxTxRetries = 64

// Ledger stores JSON-encoded entries in a Redis list.
type Ledger struct {
	client *redis.Client
	key    string
}

// NewLedger wraps client. An empty key defaults to DefaultKey.
func NewLedger(client *redis.Client, key string) (*Ledger, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Ledger{client: client, key: key}, nil
}

// Append pushes entry to the tail; RPUSH reports the new length.
func (l *Ledger) Append(ctx context.Context, entry hansard.QueueEntry) (int, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal queue entry: %w", err)
	}
	n, err := l.client.RPush(ctx, l.key, data).Result()
	if err != nil {
		return 0, fmt.Errorf("rpush %s: %w", l.key, err)
	}
	return int(n), nil
}

// RemoveFirst deletes the first entry accepted by match. The scan and removal
// run under WATCH so a concurrent change restarts the attempt.
func (l *Ledger) RemoveFirst(ctx context.Context, match func(hansard.QueueEntry) bool) (bool, error) {
	tombstone := "__removed__:" + uuid.NewString()
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		removed := false
		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.LRange(ctx, l.key, 0, -1).Result()
			if err != nil {
				return fmt.Errorf("lrange %s: %w", l.key, err)
			}
			idx := indexOf(raw, match)
			if idx < 0 {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LSet(ctx, l.key, int64(idx), tombstone)
				pipe.LRem(ctx, l.key, 1, tombstone)
				return nil
			})
			if err != nil {
				return err
			}
			removed = true
			return nil
		}, l.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("remove from %s: %w", l.key, err)
		}
		return removed, nil
	}
	return false, fmt.Errorf("remove from %s: gave up after %d conflicting attempts", l.key, maxTxRetries)
}

// List returns every entry in order. Entries that fail to decode are skipped.
func (l *Ledger) List(ctx context.Context) ([]hansard.QueueEntry, error) {
	raw, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", l.key, err)
	}
	out := make([]hansard.QueueEntry, 0, len(raw))
	for _, item := range raw {
		var entry hansard.QueueEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func indexOf(raw []string, match func(hansard.QueueEntry) bool) int {
	for i, item := range raw {
		var entry hansard.QueueEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		if match(entry) {
			return i
		}
	}
	return -1
}
