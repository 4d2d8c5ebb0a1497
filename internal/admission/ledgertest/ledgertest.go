// Package ledgertest holds the behavior every admission ledger must share.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// Run exercises a ledger built fresh by newLedger for each subtest.
func Run(t *testing.T, newLedger func(t *testing.T) hansard.Ledger) {
	t.Helper()

	t.Run("append returns positions", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		for i, handle := range []string{"A", "B", "C"} {
			pos, err := ledger.Append(ctx, hansard.QueueEntry{Handle: handle, DisplayName: "user " + handle})
			require.NoError(t, err)
			require.Equal(t, i+1, pos)
		}
		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"A", "B", "C"}, handles(entries))
		require.Equal(t, "user B", entries[1].DisplayName)
	})

	t.Run("remove first keeps order", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		for _, handle := range []string{"A", "B", "A", "C"} {
			_, err := ledger.Append(ctx, hansard.QueueEntry{Handle: handle})
			require.NoError(t, err)
		}
		removed, err := ledger.RemoveFirst(ctx, byHandle("A"))
		require.NoError(t, err)
		require.True(t, removed)

		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"B", "A", "C"}, handles(entries))
	})

	t.Run("remove absent is a no-op", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		_, err := ledger.Append(ctx, hansard.QueueEntry{Handle: "A"})
		require.NoError(t, err)

		removed, err := ledger.RemoveFirst(ctx, byHandle("Z"))
		require.NoError(t, err)
		require.False(t, removed)

		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"A"}, handles(entries))
	})

	t.Run("empty list", func(t *testing.T) {
		ledger := newLedger(t)
		entries, err := ledger.List(context.Background())
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("concurrent appends get distinct positions", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		const n = 20
		positions := make([]int, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pos, err := ledger.Append(ctx, hansard.QueueEntry{Handle: fmt.Sprintf("h%d", i)})
				require.NoError(t, err)
				positions[i] = pos
			}(i)
		}
		wg.Wait()
		seen := make(map[int]bool, n)
		for _, pos := range positions {
			require.False(t, seen[pos], "duplicate position %d", pos)
			seen[pos] = true
		}
		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, n)
	})

	t.Run("concurrent removals remove each entry once", func(t *testing.T) {
		ledger := newLedger(t)
		ctx := context.Background()
		for _, handle := range []string{"A", "B", "C", "D"} {
			_, err := ledger.Append(ctx, hansard.QueueEntry{Handle: handle})
			require.NoError(t, err)
		}
		var wg sync.WaitGroup
		for _, handle := range []string{"B", "D", "B"} {
			wg.Add(1)
			go func(handle string) {
				defer wg.Done()
				_, err := ledger.RemoveFirst(ctx, byHandle(handle))
				require.NoError(t, err)
			}(handle)
		}
		wg.Wait()
		entries, err := ledger.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"A", "C"}, handles(entries))
	})
}

func byHandle(handle string) func(hansard.QueueEntry) bool {
	return func(e hansard.QueueEntry) bool { return e.Handle == handle }
}

func handles(entries []hansard.QueueEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Handle)
	}
	return out
}
