// Package dispatcher admits scrape requests and fans queued jobs out to a
// pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/worker"
)

// QueuedText is sent to the requester when a request is accepted.
const QueuedText = "Запрос принят. Позиция в очереди: %d"

// Admission is the pending ledger the dispatcher writes to.
type Admission interface {
	Enqueue(ctx context.Context, entry hansard.QueueEntry) (int, error)
	DequeueSpecific(ctx context.Context, handle string) error
}

// NoticeRetractor is implemented by notifiers that can withdraw a notice
// recorded for a submission that was rolled back.
type NoticeRetractor interface {
	Retract(ctx context.Context, notice hansard.Notice) error
}

// Deps are the collaborators used on the submission path.
type Deps struct {
	Queue     hansard.Queue
	Admission Admission
	Jobs      hansard.JobStore
	IDs       hansard.IDGenerator
	Clock     hansard.Clock
	Notifier  hansard.Notifier
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	deps    Deps
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(deps Deps, workers []*worker.Worker, logger *zap.Logger) (*Dispatcher, error) {
	if deps.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if deps.Admission == nil || deps.Jobs == nil || deps.IDs == nil {
		return nil, errors.New("admission, job store and id generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{deps: deps, workers: workers, logger: logger}, nil
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit records a queued job, appends the requester to the admission ledger
// and pushes the job to the workers. It returns the job ID and the 1-based
// admission position.
func (d *Dispatcher) Submit(ctx context.Context, req hansard.ScrapeRequest) (string, int, error) {
	if req.Scope == nil || req.Requester.Handle == "" {
		return "", 0, fmt.Errorf("%w: request was not built by NewScrapeRequest", hansard.ErrInvalidRequest)
	}
	jobID, err := d.deps.IDs.NewID()
	if err != nil {
		return "", 0, fmt.Errorf("job id: %w", err)
	}
	now := d.now()
	job := hansard.Job{
		ID:        jobID,
		Status:    hansard.JobStatusQueued,
		Request:   req,
		Submitted: now,
	}
	if err := d.deps.Jobs.CreateJob(ctx, job); err != nil {
		return "", 0, fmt.Errorf("create job: %w", err)
	}

	logger := d.logger.With(zap.String("job_id", jobID), zap.String("handle", req.Requester.Handle))
	position, err := d.deps.Admission.Enqueue(ctx, hansard.QueueEntry{
		Handle:      req.Requester.Handle,
		DisplayName: req.Requester.DisplayName,
	})
	if err != nil {
		d.abandon(ctx, jobID, err, logger)
		return "", 0, fmt.Errorf("admission enqueue: %w", err)
	}

	// The queued notice goes out before the hand-off so a free worker cannot
	// record "started" ahead of it.
	queued := hansard.Notice{
		Handle: req.Requester.Handle,
		Kind:   hansard.NoticeQueued,
		Text:   fmt.Sprintf(QueuedText, position),
		JobID:  jobID,
		At:     now,
	}
	notified := d.notify(ctx, queued, logger)

	item := hansard.QueueItem{JobID: jobID, Request: req, Submitted: now.UnixNano()}
	if err := d.deps.Queue.Enqueue(ctx, item); err != nil {
		rollbackCtx := context.WithoutCancel(ctx)
		if rmErr := d.deps.Admission.DequeueSpecific(rollbackCtx, req.Requester.Handle); rmErr != nil {
			logger.Error("admission rollback failed", zap.Error(rmErr))
		}
		if notified {
			d.retract(rollbackCtx, queued, logger)
		}
		d.abandon(ctx, jobID, err, logger)
		return "", 0, fmt.Errorf("queue enqueue: %w", err)
	}

	logger.Info("job submitted", zap.Int("position", position))
	return jobID, position, nil
}

func (d *Dispatcher) notify(ctx context.Context, notice hansard.Notice, logger *zap.Logger) bool {
	if d.deps.Notifier == nil {
		return false
	}
	if err := d.deps.Notifier.Notify(ctx, notice); err != nil {
		logger.Warn("queued notice failed", zap.Error(err))
		return false
	}
	return true
}

// retract withdraws a notice when the notifier supports it.
func (d *Dispatcher) retract(ctx context.Context, notice hansard.Notice, logger *zap.Logger) {
	r, ok := d.deps.Notifier.(NoticeRetractor)
	if !ok {
		return
	}
	if err := r.Retract(ctx, notice); err != nil {
		logger.Warn("queued notice retract failed", zap.Error(err))
	}
}

// abandon marks a job that never reached a worker as failed.
func (d *Dispatcher) abandon(ctx context.Context, jobID string, cause error, logger *zap.Logger) {
	err := d.deps.Jobs.UpdateJob(context.WithoutCancel(ctx), jobID, hansard.JobStatusFailed, cause.Error(),
		hansard.JobResult{}, d.now())
	if err != nil {
		logger.Error("mark abandoned job failed", zap.Error(err))
	}
}

func (d *Dispatcher) now() time.Time {
	if d.deps.Clock != nil {
		return d.deps.Clock.Now()
	}
	return time.Now().UTC()
}
