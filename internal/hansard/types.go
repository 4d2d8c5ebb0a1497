package hansard

import (
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job represents the metadata persisted for each submitted scrape request.
type Job struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	Request   ScrapeRequest `json:"request"`
	Submitted time.Time     `json:"submitted_at"`
	Started   *time.Time    `json:"started_at,omitempty"`
	Finished  *time.Time    `json:"finished_at,omitempty"`
	ErrorText string        `json:"error_text,omitempty"`
	Result    JobResult     `json:"result"`
}

// JobResult summarizes what a finished job produced.
type JobResult struct {
	Entries   int    `json:"entries"`
	Filename  string `json:"filename,omitempty"`
	ReportURI string `json:"report_uri,omitempty"`
}

// QueueItem wraps a job ready to run on a worker.
type QueueItem struct {
	JobID   string
	Request ScrapeRequest
	// Submitted is the submission time in unix nanoseconds.
	Submitted int64
}

// QueueEntry is one line of the admission ledger.
type QueueEntry struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

// ResultEntry is a single label line describing one matching record.
type ResultEntry string

// ResultPage is an ordered bucket of at most PageSize entries.
type ResultPage []ResultEntry

// ReportFile is the aggregated result of one job.
type ReportFile struct {
	Filename string       `json:"filename"`
	Pages    []ResultPage `json:"pages"`
}

// Entries returns every entry after the header page, in order.
func (r ReportFile) Entries() []ResultEntry {
	if len(r.Pages) < 2 {
		return nil
	}
	var out []ResultEntry
	for _, page := range r.Pages[1:] {
		out = append(out, page...)
	}
	return out
}

// NoticeKind classifies messages delivered to a requester.
type NoticeKind string

// Notice kinds.
const (
	NoticeQueued     NoticeKind = "queued"
	NoticeStarted    NoticeKind = "started"
	NoticeReport     NoticeKind = "report"
	NoticeFailure    NoticeKind = "failure"
	NoticeFetchError NoticeKind = "fetch_error"
)

// Notice is a user-facing message for a requester.
type Notice struct {
	Handle    string     `json:"handle"`
	Kind      NoticeKind `json:"kind"`
	Text      string     `json:"text"`
	JobID     string     `json:"job_id,omitempty"`
	Filename  string     `json:"filename,omitempty"`
	ReportURI string     `json:"report_uri,omitempty"`
	At        time.Time  `json:"at"`
}

// JobEvent is published once a job reaches a terminal status.
type JobEvent struct {
	JobID     string    `json:"job_id"`
	Handle    string    `json:"handle"`
	Status    JobStatus `json:"status"`
	Entries   int       `json:"entries"`
	Filename  string    `json:"filename,omitempty"`
	ReportURI string    `json:"report_uri,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Person is a member found by a surname lookup.
type Person struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Dates string `json:"dates"`
}

// FetchResponse is the raw outcome of a single HTTP GET.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
