package admission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hansard-crawler/internal/admission/memory"
	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

type brokenLedger struct{}

func (brokenLedger) Append(context.Context, hansard.QueueEntry) (int, error) {
	return 0, errors.New("down")
}

func (brokenLedger) RemoveFirst(context.Context, func(hansard.QueueEntry) bool) (bool, error) {
	return false, errors.New("down")
}

func (brokenLedger) List(context.Context) ([]hansard.QueueEntry, error) {
	return nil, errors.New("down")
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q, err := New(memory.NewLedger(), nil)
	require.NoError(t, err)

	for i, h := range []string{"A", "B", "C"} {
		pos, err := q.Enqueue(ctx, hansard.QueueEntry{Handle: h})
		require.NoError(t, err)
		require.Equal(t, i+1, pos)
	}

	require.NoError(t, q.DequeueSpecific(ctx, "B"))
	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, []hansard.QueueEntry{{Handle: "A"}, {Handle: "C"}}, pending)

	pos, err := q.Enqueue(ctx, hansard.QueueEntry{Handle: "D"})
	require.NoError(t, err)
	require.Equal(t, 3, pos)
}

func TestQueueDequeueAbsentIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q, err := New(memory.NewLedger(), nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, hansard.QueueEntry{Handle: "A"})
	require.NoError(t, err)

	require.NoError(t, q.DequeueSpecific(ctx, "Z"))
	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestQueueWrapsLedgerErrors(t *testing.T) {
	t.Parallel()

	q, err := New(brokenLedger{}, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), hansard.QueueEntry{Handle: "A"})
	require.ErrorContains(t, err, "admission enqueue")
	require.ErrorContains(t, q.DequeueSpecific(context.Background(), "A"), "admission dequeue A")
	_, err = q.Pending(context.Background())
	require.ErrorContains(t, err, "admission list")
}
