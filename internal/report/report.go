// Package report turns traversal entries into the paginated report delivered
// to a requester.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// ContentType of rendered reports.
const ContentType = "text/plain; charset=utf-8"

// Paginate splits entries into pages of at most size entries without losing or
// reordering any. No entries yields no pages.
func Paginate(entries []hansard.ResultEntry, size int) []hansard.ResultPage {
	if size <= 0 {
		size = hansard.PageSize
	}
	var pages []hansard.ResultPage
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		page := make(hansard.ResultPage, end-start)
		copy(page, entries[start:end])
		pages = append(pages, page)
	}
	return pages
}

// Header summarizes the request and the number of entries found.
func Header(req hansard.ScrapeRequest, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "По ключевому слову \"%s\" найдено объектов: %d", req.Keyword, count)
	switch scope := req.Scope.(type) {
	case hansard.PersonScope:
		fmt.Fprintf(&b, "; по персоне %s", PersonName(scope.Slug))
	case hansard.SittingsScope:
		if scope.Writings {
			b.WriteString("; по письмам")
		} else {
			b.WriteString("; по заседаниям")
		}
	}
	if req.Period.Whole() {
		b.WriteString("; за весь период активности персоны.")
	} else {
		fmt.Fprintf(&b, "; за период с %d по %d", req.Period.From, req.Period.To)
	}
	return b.String()
}

// PersonName turns a slug such as "mr-winston-churchill" into "Mr Winston Churchill".
func PersonName(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

// Filename is derived from the request alone.
func Filename(req hansard.ScrapeRequest) string {
	from, to := strconv.Itoa(req.Period.From), strconv.Itoa(req.Period.To)
	switch scope := req.Scope.(type) {
	case hansard.PersonScope:
		return fmt.Sprintf("%s.%s.%s.%s.txt", scope.Slug, req.Keyword, from, to)
	case hansard.SittingsScope:
		if scope.Writings {
			return fmt.Sprintf("%s.writings.%s.%s.txt", req.Keyword, from, to)
		}
	}
	return fmt.Sprintf("%s.sittings.%s.%s.txt", req.Keyword, from, to)
}

// Build assembles the report: a header page followed by the entry pages.
func Build(req hansard.ScrapeRequest, entries []hansard.ResultEntry) hansard.ReportFile {
	pages := []hansard.ResultPage{{hansard.ResultEntry(Header(req, len(entries)))}}
	pages = append(pages, Paginate(entries, hansard.PageSize)...)
	return hansard.ReportFile{Filename: Filename(req), Pages: pages}
}

// Render writes each page's lines followed by a blank line.
func Render(file hansard.ReportFile) []byte {
	var buf bytes.Buffer
	for _, page := range file.Pages {
		for i, entry := range page {
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(string(entry))
		}
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}
