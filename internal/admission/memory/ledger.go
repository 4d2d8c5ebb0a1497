// Package memory provides a process-local admission ledger.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// Ledger is a mutex-guarded ordered slice.
type Ledger struct {
	mu      sync.Mutex
	entries []hansard.QueueEntry
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds entry at the tail and returns the new length.
func (l *Ledger) Append(_ context.Context, entry hansard.QueueEntry) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return len(l.entries), nil
}

// RemoveFirst deletes the first entry accepted by match.
func (l *Ledger) RemoveFirst(_ context.Context, match func(hansard.QueueEntry) bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if match(e) {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// List returns a copy of the entries in order.
func (l *Ledger) List(_ context.Context) ([]hansard.QueueEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]hansard.QueueEntry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}
