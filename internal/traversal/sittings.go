package traversal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

const sittingsStrategyName = "sittings"

// sittingsStrategy visits every day of the period. Days that do not exist in
// the calendar simply 404.
type sittingsStrategy struct {
	engine   *Engine
	req      hansard.ScrapeRequest
	writings bool
}

func (s *sittingsStrategy) run(ctx context.Context) ([]hansard.ResultEntry, error) {
	var entries []hansard.ResultEntry
	for year := s.req.Period.From; year <= s.req.Period.To; year++ {
		for _, month := range hansard.Months {
			for day := 1; day <= hansard.LastMonthDay; day++ {
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("traverse sittings: %w", err)
				}
				found, err := s.scanDay(ctx, year, month, day)
				if err != nil {
					return nil, err
				}
				entries = append(entries, found...)
			}
		}
		s.engine.logger.Debug("finished sittings year",
			zap.Int("year", year),
			zap.Int("entries", len(entries)),
		)
	}
	return entries, nil
}

func (s *sittingsStrategy) scanDay(ctx context.Context, year int, month string, day int) ([]hansard.ResultEntry, error) {
	fc := s.req.FetchContext()
	page, ok, err := s.engine.page(ctx, s.engine.source.SittingDay(year, month, day), fc, sittingsStrategyName)
	if err != nil || !ok {
		return nil, err
	}

	var entries []hansard.ResultEntry
	for _, item := range sittingLinks(page.Document, s.writings) {
		target := page.resolve(item.Href)
		matched := false
		switch s.req.Way {
		case hansard.WayHeaders:
			matched = strings.Contains(strings.ToUpper(item.Title), s.req.Keyword)
		case hansard.WayTexts:
			matched, err = s.engine.matchesText(ctx, target, s.req.Keyword, fc, sittingsStrategyName)
			if err != nil {
				return nil, err
			}
		}
		if matched {
			entries = append(entries, hansard.ResultEntry(
				fmt.Sprintf("%d.%s.%d %s – %s", year, month, day, item.Title, target),
			))
		}
	}
	return entries, nil
}
