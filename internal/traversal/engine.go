// Package traversal walks the archive for a scrape request and collects the
// matching entries in traversal order.
package traversal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/metrics"
)

// Engine selects a strategy per request and runs it against a PageSource.
type Engine struct {
	source hansard.Source
	pages  hansard.PageSource
	logger *zap.Logger
}

// New constructs an Engine.
func New(source hansard.Source, pages hansard.PageSource, logger *zap.Logger) (*Engine, error) {
	if pages == nil {
		return nil, errors.New("page source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, pages: pages, logger: logger}, nil
}

// strategy walks one kind of scope.
type strategy interface {
	run(ctx context.Context) ([]hansard.ResultEntry, error)
}

// Traverse runs the strategy chosen by the request scope. Missing pages are
// skipped; unrecoverable fetch errors abort the walk and are returned unchanged.
func (e *Engine) Traverse(ctx context.Context, req hansard.ScrapeRequest) ([]hansard.ResultEntry, error) {
	var s strategy
	switch scope := req.Scope.(type) {
	case hansard.PersonScope:
		s = &personStrategy{engine: e, req: req, slug: scope.Slug}
	case hansard.SittingsScope:
		s = &sittingsStrategy{engine: e, req: req, writings: scope.Writings}
	default:
		return nil, fmt.Errorf("traverse: unsupported scope %T", req.Scope)
	}
	return s.run(ctx)
}

// People finds members on the index page for the surname's first letter whose
// name contains surname, ignoring case.
func (e *Engine) People(ctx context.Context, surname string, fc hansard.FetchContext) ([]hansard.Person, error) {
	surname = strings.TrimSpace(surname)
	if surname == "" {
		return nil, fmt.Errorf("%w: surname is required", hansard.ErrInvalidRequest)
	}
	url := e.source.PeopleIndex(string([]rune(surname)[:1]))

	doc, ok, err := e.page(ctx, url, fc, "people")
	if err != nil || !ok {
		return nil, err
	}
	return people(doc.Document, surname), nil
}

// docPage is a parsed page with the URL its relative links resolve against.
type docPage struct {
	*goquery.Document
	url string
}

func (p *docPage) resolve(href string) string {
	return hansard.Resolve(p.url, href)
}

// page fetches and parses url. ok is false when the page does not exist.
func (e *Engine) page(
	ctx context.Context,
	url string,
	fc hansard.FetchContext,
	strategy string,
) (*docPage, bool, error) {
	content, err := e.pages.Fetch(ctx, url, fc)
	if errors.Is(err, hansard.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	metrics.ObserveTraversalPage(strategy)
	doc, err := parse(content)
	if err != nil {
		return nil, false, fmt.Errorf("page %s: %w", url, err)
	}
	return &docPage{Document: doc, url: url}, true, nil
}

// matchesText fetches a candidate and reports whether its speech text holds
// keyword. A missing candidate does not match.
func (e *Engine) matchesText(ctx context.Context, url, keyword string, fc hansard.FetchContext, strategy string) (bool, error) {
	doc, ok, err := e.page(ctx, url, fc, strategy)
	if err != nil || !ok {
		return false, err
	}
	return strings.Contains(contributionText(doc.Document), keyword), nil
}
