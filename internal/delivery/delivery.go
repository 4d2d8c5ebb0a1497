// Package delivery hands finished reports and notices to requesters. Reports
// go to a blob store; notices go to a bounded per-requester mailbox that front
// ends poll.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/report"
)

// ReportCaption accompanies every delivered report.
const ReportCaption = "Вот твой файл с результатами 📄"

// DefaultMailboxSize bounds the notices kept per requester.
const DefaultMailboxSize = 100

// Config tunes delivery.
type Config struct {
	// Prefix is prepended to report object paths.
	Prefix      string
	MailboxSize int
}

// Service implements hansard.Delivery.
type Service struct {
	blobs  hansard.BlobStore
	clock  hansard.Clock
	logger *zap.Logger
	prefix string
	limit  int

	mu        sync.RWMutex
	mailboxes map[string][]hansard.Notice
}

// New constructs a delivery Service.
func New(blobs hansard.BlobStore, clock hansard.Clock, cfg Config, logger *zap.Logger) (*Service, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.MailboxSize
	if limit <= 0 {
		limit = DefaultMailboxSize
	}
	return &Service{
		blobs:     blobs,
		clock:     clock,
		logger:    logger,
		prefix:    cfg.Prefix,
		limit:     limit,
		mailboxes: make(map[string][]hansard.Notice),
	}, nil
}

// Notify appends notice to the requester's mailbox, dropping the oldest
// notice once the mailbox is full.
func (s *Service) Notify(_ context.Context, notice hansard.Notice) error {
	if notice.Handle == "" {
		return errors.New("notice handle is required")
	}
	if notice.At.IsZero() {
		notice.At = s.now()
	}
	s.mu.Lock()
	box := append(s.mailboxes[notice.Handle], notice)
	if len(box) > s.limit {
		box = box[len(box)-s.limit:]
	}
	s.mailboxes[notice.Handle] = box
	s.mu.Unlock()

	s.logger.Info("notice delivered",
		zap.String("handle", notice.Handle),
		zap.String("kind", string(notice.Kind)),
		zap.String("job_id", notice.JobID),
	)
	return nil
}

// Retract removes the newest notice with the same handle, kind and job ID.
// A missing notice is not an error.
func (s *Service) Retract(_ context.Context, notice hansard.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	box := s.mailboxes[notice.Handle]
	for i := len(box) - 1; i >= 0; i-- {
		if box[i].Kind == notice.Kind && box[i].JobID == notice.JobID {
			s.mailboxes[notice.Handle] = append(box[:i:i], box[i+1:]...)
			return nil
		}
	}
	return nil
}

// Notices returns a copy of the requester's mailbox, oldest first.
func (s *Service) Notices(handle string) []hansard.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	box := s.mailboxes[handle]
	out := make([]hansard.Notice, len(box))
	copy(out, box)
	return out
}

// DeliverReport stores the rendered report and notifies the requester.
func (s *Service) DeliverReport(ctx context.Context, job hansard.Job, file hansard.ReportFile, body []byte) (string, error) {
	uri, err := s.blobs.PutObject(ctx, s.objectPath(job.ID, file.Filename), report.ContentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	err = s.Notify(ctx, hansard.Notice{
		Handle:    job.Request.Requester.Handle,
		Kind:      hansard.NoticeReport,
		Text:      ReportCaption,
		JobID:     job.ID,
		Filename:  file.Filename,
		ReportURI: uri,
		At:        s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("notify report: %w", err)
	}
	return uri, nil
}

// OpenReport opens the stored report of a finished job.
func (s *Service) OpenReport(ctx context.Context, job hansard.Job) (io.ReadCloser, error) {
	if job.Result.Filename == "" {
		return nil, fmt.Errorf("job %s has no report", job.ID)
	}
	rc, err := s.blobs.GetObject(ctx, s.objectPath(job.ID, job.Result.Filename))
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	return rc, nil
}

func (s *Service) objectPath(jobID, filename string) string {
	return path.Join(s.prefix, "reports", jobID, filename)
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}
