// Package worker runs scrape jobs: admission removal, traversal, report
// aggregation and delivery, with failures contained per job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/metrics"
	"github.com/JakeFAU/hansard-crawler/internal/report"
)

// User-facing notice texts.
const (
	StartedText    = "Ваш запрос начал обрабатываться ⏳"
	FailureText    = "Произошла ошибка при обработке запроса ❌"
	FileFailedText = "Файл не удалось создать ❌"
)

// Event types published when a job finishes.
const (
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
)

// Traverser collects the entries matching a request.
type Traverser interface {
	Traverse(ctx context.Context, req hansard.ScrapeRequest) ([]hansard.ResultEntry, error)
}

// Admission removes a requester from the pending ledger once work starts.
type Admission interface {
	DequeueSpecific(ctx context.Context, handle string) error
}

// Deps are the collaborators shared by every worker.
type Deps struct {
	Queue     hansard.Queue
	Admission Admission
	Traverser Traverser
	Jobs      hansard.JobStore
	Delivery  hansard.Delivery
	Publisher hansard.Publisher
	Hasher    hansard.Hasher
	Clock     hansard.Clock
}

// Worker consumes queue items and executes the job pipeline.
type Worker struct {
	deps   Deps
	logger *zap.Logger
}

// errDelivery marks failures that happened while handing the report over.
var errDelivery = errors.New("report delivery failed")

// New constructs a Worker.
func New(deps Deps, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{deps: deps, logger: logger}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, hansard.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		_, _ = w.Process(ctx, item)
	}
}

// Process runs one job to completion. The returned job carries the final
// status and result; the error is the failure that ended it, if any. The
// requester is notified exactly once about a failure.
func (w *Worker) Process(ctx context.Context, item hansard.QueueItem) (hansard.Job, error) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	handle := item.Request.Requester.Handle
	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("handle", handle))
	job := hansard.Job{
		ID:        item.JobID,
		Status:    hansard.JobStatusRunning,
		Request:   item.Request,
		Submitted: time.Unix(0, item.Submitted).UTC(),
	}
	started := w.now()
	job.Started = &started

	if w.deps.Admission != nil {
		if err := w.deps.Admission.DequeueSpecific(ctx, handle); err != nil {
			logger.Warn("admission dequeue failed", zap.Error(err))
		}
	}
	w.updateStatus(ctx, job, logger)
	w.notify(ctx, hansard.Notice{
		Handle: handle,
		Kind:   hansard.NoticeStarted,
		Text:   StartedText,
		JobID:  job.ID,
	}, logger)

	hash, err := w.execute(ctx, &job, logger)
	if err != nil {
		w.fail(ctx, &job, err, logger)
		return job, err
	}

	finished := w.now()
	job.Status = hansard.JobStatusSucceeded
	job.Finished = &finished
	w.updateStatus(ctx, job, logger)
	metrics.ObserveJob(string(job.Status))
	w.publish(ctx, EventCompleted, job, hash, logger)
	logger.Info("job succeeded",
		zap.Int("entries", job.Result.Entries),
		zap.String("filename", job.Result.Filename),
		zap.Duration("duration", finished.Sub(started)),
	)
	return job, nil
}

// execute traverses, aggregates and delivers. It fills job.Result and returns
// the report digest.
func (w *Worker) execute(ctx context.Context, job *hansard.Job, logger *zap.Logger) (string, error) {
	if w.deps.Traverser == nil || w.deps.Delivery == nil {
		return "", errors.New("worker is not fully configured")
	}
	entries, err := w.deps.Traverser.Traverse(ctx, job.Request)
	if err != nil {
		return "", fmt.Errorf("traverse: %w", err)
	}
	logger.Debug("traversal finished", zap.Int("entries", len(entries)))

	file := report.Build(job.Request, entries)
	body := report.Render(file)
	metrics.ObserveReport(len(entries))
	job.Result = hansard.JobResult{Entries: len(entries), Filename: file.Filename}

	var hash string
	if w.deps.Hasher != nil {
		hash, err = w.deps.Hasher.Hash(body)
		if err != nil {
			return "", fmt.Errorf("hash report: %w", err)
		}
	}

	uri, err := w.deps.Delivery.DeliverReport(ctx, *job, file, body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errDelivery, err)
	}
	job.Result.ReportURI = uri
	return hash, nil
}

// fail records the failure and sends the single failure notice unless the
// fetch service already told the requester. Bookkeeping survives shutdown
// cancellation of ctx.
func (w *Worker) fail(ctx context.Context, job *hansard.Job, cause error, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	finished := w.now()
	job.Status = hansard.JobStatusFailed
	job.Finished = &finished
	job.ErrorText = cause.Error()
	logger.Error("job failed", zap.Error(cause))

	w.updateStatus(ctx, *job, logger)
	metrics.ObserveJob(string(job.Status))

	if !hansard.AlreadyNotified(cause) {
		text := FailureText
		if errors.Is(cause, errDelivery) {
			text = FileFailedText
		}
		w.notify(ctx, hansard.Notice{
			Handle: job.Request.Requester.Handle,
			Kind:   hansard.NoticeFailure,
			Text:   text,
			JobID:  job.ID,
		}, logger)
	}
	w.publish(ctx, EventFailed, *job, "", logger)
}

func (w *Worker) updateStatus(ctx context.Context, job hansard.Job, logger *zap.Logger) {
	if w.deps.Jobs == nil {
		return
	}
	at := w.now()
	if job.Finished != nil {
		at = *job.Finished
	}
	if err := w.deps.Jobs.UpdateJob(ctx, job.ID, job.Status, job.ErrorText, job.Result, at); err != nil {
		logger.Error("update job status failed", zap.String("status", string(job.Status)), zap.Error(err))
	}
}

func (w *Worker) notify(ctx context.Context, notice hansard.Notice, logger *zap.Logger) {
	if w.deps.Delivery == nil {
		return
	}
	if err := w.deps.Delivery.Notify(ctx, notice); err != nil {
		logger.Error("notify requester failed", zap.String("kind", string(notice.Kind)), zap.Error(err))
	}
}

func (w *Worker) publish(ctx context.Context, eventType string, job hansard.Job, hash string, logger *zap.Logger) {
	if w.deps.Publisher == nil {
		return
	}
	event := hansard.JobEvent{
		JobID:     job.ID,
		Handle:    job.Request.Requester.Handle,
		Status:    job.Status,
		Entries:   job.Result.Entries,
		Filename:  job.Result.Filename,
		ReportURI: job.Result.ReportURI,
		Hash:      hash,
		Error:     job.ErrorText,
		Timestamp: w.now(),
	}
	id, err := w.deps.Publisher.Publish(ctx, eventType, event)
	if err != nil {
		logger.Warn("publish job event failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	logger.Debug("job event published", zap.String("event", eventType), zap.String("message_id", id))
}

func (w *Worker) now() time.Time {
	if w.deps.Clock != nil {
		return w.deps.Clock.Now()
	}
	return time.Now().UTC()
}
