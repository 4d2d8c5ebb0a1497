// Package admission is the shared FIFO of requesters waiting for a worker. It
// never reorders entries; removing one keeps the relative order of the rest.
package admission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/metrics"
)

// Queue tracks pending jobs by requester handle over a Ledger.
type Queue struct {
	ledger hansard.Ledger
	logger *zap.Logger
}

// New constructs a Queue backed by ledger.
func New(ledger hansard.Ledger, logger *zap.Logger) (*Queue, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{ledger: ledger, logger: logger}, nil
}

// Enqueue appends entry and returns its 1-based position.
func (q *Queue) Enqueue(ctx context.Context, entry hansard.QueueEntry) (int, error) {
	position, err := q.ledger.Append(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("admission enqueue: %w", err)
	}
	metrics.SetAdmissionDepth(position)
	q.logger.Debug("requester admitted",
		zap.String("handle", entry.Handle),
		zap.Int("position", position),
	)
	return position, nil
}

// DequeueSpecific removes the first entry for handle. It is a no-op when the
// handle is not queued.
func (q *Queue) DequeueSpecific(ctx context.Context, handle string) error {
	removed, err := q.ledger.RemoveFirst(ctx, func(e hansard.QueueEntry) bool {
		return e.Handle == handle
	})
	if err != nil {
		return fmt.Errorf("admission dequeue %s: %w", handle, err)
	}
	if !removed {
		q.logger.Debug("requester not queued", zap.String("handle", handle))
	}
	return nil
}

// Pending returns a snapshot of the queue in order.
func (q *Queue) Pending(ctx context.Context) ([]hansard.QueueEntry, error) {
	entries, err := q.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("admission list: %w", err)
	}
	metrics.SetAdmissionDepth(len(entries))
	return entries, nil
}
