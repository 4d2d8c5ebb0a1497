package hansard

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest wraps every validation failure from NewScrapeRequest.
var ErrInvalidRequest = errors.New("invalid scrape request")

// ErrNotFound signals that the source has no page at a URL. Traversal treats it
// as the end of a branch.
var ErrNotFound = errors.New("page not found")

// ErrNotFoundJob is returned by job stores for unknown job IDs.
var ErrNotFoundJob = errors.New("job not found")

// ErrQueueClosed is returned by execution queues after shutdown.
var ErrQueueClosed = errors.New("queue closed")

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}

// FetchErrorKind tags a fetch failure.
type FetchErrorKind int

// Fetch failure kinds.
const (
	FetchNotFound FetchErrorKind = iota + 1
	FetchUnrecoverable
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchNotFound:
		return "not_found"
	case FetchUnrecoverable:
		return "unrecoverable"
	default:
		return "unknown"
	}
}

// FetchError describes why a URL could not be fetched. Notified is set once the
// requester has been told about the failure.
type FetchError struct {
	Kind     FetchErrorKind
	URL      string
	Attempts int
	Notified bool
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s after %d attempts: %v", e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes a not-found FetchError match ErrNotFound.
func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == FetchNotFound
}

// IsUnrecoverable reports whether err carries an unrecoverable fetch failure.
func IsUnrecoverable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchUnrecoverable
}

// AlreadyNotified reports whether the requester was already told about err.
func AlreadyNotified(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Notified
}
