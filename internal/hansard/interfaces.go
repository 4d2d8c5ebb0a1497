package hansard

import (
	"context"
	"io"
	"time"
)

// DocumentStore persists fetched page content keyed by URL. PutIfAbsent never
// overwrites; it reports whether this call inserted the row.
type DocumentStore interface {
	Get(ctx context.Context, url string) (string, bool, error)
	PutIfAbsent(ctx context.Context, url string, content string) (bool, error)
}

// Fetcher performs a single HTTP GET. Non-2xx statuses are reported through
// FetchResponse.StatusCode; only transport failures return an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// PageSource returns page content for a URL, consulting the cache first.
type PageSource interface {
	Fetch(ctx context.Context, url string, fc FetchContext) (string, error)
}

// Ledger is the ordered store behind the admission queue.
type Ledger interface {
	Append(ctx context.Context, entry QueueEntry) (int, error)
	RemoveFirst(ctx context.Context, match func(QueueEntry) bool) (bool, error)
	List(ctx context.Context) ([]QueueEntry, error)
}

// Notifier sends a user-facing notice to a requester.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// Delivery hands finished reports and notices to requesters.
type Delivery interface {
	Notifier
	DeliverReport(ctx context.Context, job Job, report ReportFile, body []byte) (string, error)
	OpenReport(ctx context.Context, job Job) (io.ReadCloser, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// JobStore persists job metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, jobID string, status JobStatus, errText string, result JobResult, at time.Time) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Queue provides enqueue/dequeue semantics for jobs waiting for a worker.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Policy throttles requests to the source.
type Policy interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests of report bodies.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
