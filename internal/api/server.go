package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/metrics"
	"github.com/JakeFAU/hansard-crawler/internal/report"
)

// Submitter admits validated requests.
type Submitter interface {
	Submit(ctx context.Context, req hansard.ScrapeRequest) (string, int, error)
}

// PendingLister exposes the admission ledger.
type PendingLister interface {
	Pending(ctx context.Context) ([]hansard.QueueEntry, error)
}

// PeopleFinder looks members up by surname.
type PeopleFinder interface {
	People(ctx context.Context, surname string, fc hansard.FetchContext) ([]hansard.Person, error)
}

// ReportOpener reads stored reports back.
type ReportOpener interface {
	OpenReport(ctx context.Context, job hansard.Job) (io.ReadCloser, error)
}

// Mailbox exposes the notices delivered to a requester.
type Mailbox interface {
	Notices(handle string) []hansard.Notice
}

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Options tunes the server.
type Options struct {
	AuthEnabled    bool
	APIKey         string
	RequestTimeout time.Duration
	ReadyChecks    map[string]ReadyCheck
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Submitter Submitter
	Jobs      hansard.JobStore
	Pending   PendingLister
	People    PeopleFinder
	Reports   ReportOpener
	Mailbox   Mailbox
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router chi.Router
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	s := &Server{deps: deps, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		if opts.AuthEnabled {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/scrapes", s.submitScrape)
		r.Get("/queue", s.listQueue)
		r.Get("/people", s.findPeople)
		r.Get("/requesters/{handle}/notices", s.listNotices)
		r.Route("/jobs/{job_id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/report", s.getReport)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	failures := map[string]string{}
	for name, check := range s.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitResponse struct {
	JobID    string `json:"job_id"`
	Position int    `json:"position"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var in hansard.ScrapeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req, err := hansard.NewScrapeRequest(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, position, err := s.deps.Submitter.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, hansard.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusRequestTimeout
		case errors.Is(err, hansard.ErrQueueClosed):
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("submit scrape failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID, Position: position})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if job.Status != hansard.JobStatusSucceeded || job.Result.Filename == "" {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s; no report available", job.Status))
		return
	}
	rc, err := s.deps.Reports.OpenReport(r.Context(), job)
	if err != nil {
		s.logger.Error("open report failed", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to open report")
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": job.Result.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream report failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (hansard.Job, bool) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.deps.Jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, hansard.ErrNotFoundJob) {
			writeError(w, http.StatusNotFound, "job not found")
		} else {
			s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load job")
		}
		return hansard.Job{}, false
	}
	return job, true
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Pending.Pending(r.Context())
	if err != nil {
		s.logger.Error("list queue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list queue")
		return
	}
	if entries == nil {
		entries = []hansard.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": entries})
}

func (s *Server) findPeople(w http.ResponseWriter, r *http.Request) {
	surname := strings.TrimSpace(r.URL.Query().Get("surname"))
	if surname == "" {
		writeError(w, http.StatusBadRequest, "surname is required")
		return
	}
	fc := hansard.FetchContext{Handle: r.URL.Query().Get("requester")}
	people, err := s.deps.People.People(r.Context(), surname, fc)
	if err != nil {
		status := http.StatusInternalServerError
		if hansard.IsUnrecoverable(err) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	if people == nil {
		people = []hansard.Person{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"people": people})
}

func (s *Server) listNotices(w http.ResponseWriter, r *http.Request) {
	notices := s.deps.Mailbox.Notices(chi.URLParam(r, "handle"))
	writeJSON(w, http.StatusOK, map[string]any{"notices": notices})
}

type requestIDKey struct{}

// RequestID returns the ID assigned to the request by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", RequestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
