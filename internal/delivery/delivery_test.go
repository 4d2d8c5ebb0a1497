package delivery

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newJob(t *testing.T) hansard.Job {
	t.Helper()
	req, err := hansard.NewScrapeRequest(hansard.ScrapeInput{
		Keyword: "budget", FromDate: "1900", ToDate: "1901", Way: "in_headers", Requester: "chat-1",
	})
	require.NoError(t, err)
	return hansard.Job{ID: "job-1", Request: req}
}

func TestDeliverReportStoresBodyAndNotifies(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, err := New(memory.NewBlobStore(), fixedClock{now}, Config{Prefix: "hansard"}, nil)
	require.NoError(t, err)

	job := newJob(t)
	file := hansard.ReportFile{Filename: "BUDGET.sittings.1900.1901.txt"}
	uri, err := svc.DeliverReport(context.Background(), job, file, []byte("header\n\n"))
	require.NoError(t, err)
	require.Equal(t, "memory://hansard/reports/job-1/BUDGET.sittings.1900.1901.txt", uri)

	notices := svc.Notices("chat-1")
	require.Len(t, notices, 1)
	require.Equal(t, hansard.Notice{
		Handle:    "chat-1",
		Kind:      hansard.NoticeReport,
		Text:      ReportCaption,
		JobID:     "job-1",
		Filename:  file.Filename,
		ReportURI: uri,
		At:        now,
	}, notices[0])

	job.Result.Filename = file.Filename
	rc, err := svc.OpenReport(context.Background(), job)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "header\n\n", string(body))
}

func TestOpenReportWithoutFilename(t *testing.T) {
	t.Parallel()

	svc, err := New(memory.NewBlobStore(), nil, Config{}, nil)
	require.NoError(t, err)
	_, err = svc.OpenReport(context.Background(), newJob(t))
	require.Error(t, err)
}

func TestMailboxIsBounded(t *testing.T) {
	t.Parallel()

	svc, err := New(memory.NewBlobStore(), nil, Config{MailboxSize: 2}, nil)
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Notify(context.Background(), hansard.Notice{Handle: "h", Text: text}))
	}
	notices := svc.Notices("h")
	require.Len(t, notices, 2)
	require.Equal(t, "b", notices[0].Text)
	require.Equal(t, "c", notices[1].Text)
	require.False(t, notices[0].At.IsZero())

	require.Error(t, svc.Notify(context.Background(), hansard.Notice{Text: "orphan"}))
	require.Empty(t, svc.Notices("other"))
}

func TestRetractRemovesMatchingNotice(t *testing.T) {
	t.Parallel()

	svc, err := New(memory.NewBlobStore(), nil, Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, svc.Notify(ctx, hansard.Notice{Handle: "h", Kind: hansard.NoticeQueued, JobID: "j1", Text: "one"}))
	require.NoError(t, svc.Notify(ctx, hansard.Notice{Handle: "h", Kind: hansard.NoticeQueued, JobID: "j2", Text: "two"}))

	require.NoError(t, svc.Retract(ctx, hansard.Notice{Handle: "h", Kind: hansard.NoticeQueued, JobID: "j1"}))
	notices := svc.Notices("h")
	require.Len(t, notices, 1)
	require.Equal(t, "two", notices[0].Text)

	require.NoError(t, svc.Retract(ctx, hansard.Notice{Handle: "nobody", Kind: hansard.NoticeQueued, JobID: "j1"}))
}
