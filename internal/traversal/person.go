package traversal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

const personStrategyName = "person"

// personStrategy walks one member's contributions year by year.
type personStrategy struct {
	engine *Engine
	req    hansard.ScrapeRequest
	slug   string
}

func (s *personStrategy) run(ctx context.Context) ([]hansard.ResultEntry, error) {
	years, err := s.yearPages(ctx)
	if err != nil {
		return nil, err
	}
	var entries []hansard.ResultEntry
	for _, yearURL := range years {
		found, err := s.scanYear(ctx, yearURL)
		if err != nil {
			return nil, err
		}
		entries = append(entries, found...)
	}
	return entries, nil
}

// yearPages lists the year pages to scan. The member page is always fetched
// first: a missing page or one without year links yields nothing. The whole
// period follows the listed links; an explicit range addresses year pages
// directly.
func (s *personStrategy) yearPages(ctx context.Context) ([]string, error) {
	fc := s.req.FetchContext()
	index, ok, err := s.engine.page(ctx, s.engine.source.Person(s.slug), fc, personStrategyName)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.engine.logger.Info("person page not found", zap.String("slug", s.slug))
		return nil, nil
	}
	hrefs := yearLinks(index.Document)
	if len(hrefs) == 0 {
		s.engine.logger.Info("person page lists no years", zap.String("slug", s.slug))
		return nil, nil
	}

	if !s.req.Period.Whole() {
		out := make([]string, 0, s.req.Period.To-s.req.Period.From+1)
		for year := s.req.Period.From; year <= s.req.Period.To; year++ {
			out = append(out, s.engine.source.PersonYear(s.slug, year))
		}
		return out, nil
	}
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		out = append(out, index.resolve(href))
	}
	return out, nil
}

func (s *personStrategy) scanYear(ctx context.Context, yearURL string) ([]hansard.ResultEntry, error) {
	fc := s.req.FetchContext()
	page, ok, err := s.engine.page(ctx, yearURL, fc, personStrategyName)
	if err != nil || !ok {
		return nil, err
	}
	s.engine.logger.Debug("scanning person year", zap.String("url", yearURL))

	var entries []hansard.ResultEntry
	for _, c := range contributions(page.Document) {
		target := page.resolve(c.Href)
		matched := false
		switch s.req.Way {
		case hansard.WayHeaders:
			matched = strings.Contains(strings.ToUpper(c.Title), s.req.Keyword)
		case hansard.WayTexts:
			matched, err = s.engine.matchesText(ctx, target, s.req.Keyword, fc, personStrategyName)
			if err != nil {
				return nil, err
			}
		}
		if matched {
			entries = append(entries, hansard.ResultEntry(fmt.Sprintf("%s %s – %s", c.Date, c.Title, target)))
		}
	}
	return entries, nil
}
