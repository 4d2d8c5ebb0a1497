package traversal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

const base = "https://x.test/historic-hansard"

type fakePages struct {
	mu      sync.Mutex
	pages   map[string]string
	fatal   map[string]bool
	fetched []string
}

func (f *fakePages) Fetch(_ context.Context, url string, _ hansard.FetchContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if f.fatal[url] {
		return "", &hansard.FetchError{Kind: hansard.FetchUnrecoverable, URL: url, Attempts: 3, Notified: true}
	}
	content, ok := f.pages[url]
	if !ok {
		return "", &hansard.FetchError{Kind: hansard.FetchNotFound, URL: url}
	}
	return content, nil
}

func newEngine(t *testing.T, pages *fakePages) *Engine {
	t.Helper()
	e, err := New(hansard.NewSource(base), pages, nil)
	require.NoError(t, err)
	return e
}

func request(t *testing.T, in hansard.ScrapeInput) hansard.ScrapeRequest {
	t.Helper()
	in.Requester = "chat-1"
	req, err := hansard.NewScrapeRequest(in)
	require.NoError(t, err)
	return req
}

func strPtr(s string) *string { return &s }

const sittingDay = `<html><body>
<h3 id="commons">House of Commons</h3>
<ol>
  <li><a href="/historic-hansard/commons/1900/feb/01/supply-budget">SUPPLY  BUDGET</a></li>
  <li><a href="/historic-hansard/commons/1900/feb/01/army">Army Estimates</a></li>
</ol>
<h3 id="lords">House of Lords</h3>
<ol><li><a href="/historic-hansard/lords/1900/feb/01/the-budget">The Budget</a></li></ol>
<h3 id="commons_written_answers">Written Answers (Commons)</h3>
<ol><li><a href="/historic-hansard/written_answers/1900/feb/01/budget-papers">Budget Papers</a></li></ol>
</body></html>`

func TestSittingsHeadersCollectsCommonsThenLords(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{base + "/sittings/1900/feb/1": sittingDay}}
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "budget", FromDate: "1900", ToDate: "1900", Way: "in_headers",
	}))
	require.NoError(t, err)
	require.Equal(t, []hansard.ResultEntry{
		"1900.feb.1 SUPPLY BUDGET – https://x.test/historic-hansard/commons/1900/feb/01/supply-budget",
		"1900.feb.1 The Budget – https://x.test/historic-hansard/lords/1900/feb/01/the-budget",
	}, entries)
	require.Len(t, pages.fetched, 12*31)
}

func TestSittingsHeadersMatchKeywordWithInnerSpaces(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{base + "/sittings/1900/feb/1": sittingDay}}
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "supply  budget", FromDate: "1900", ToDate: "1900", Way: "in_headers",
	}))
	require.NoError(t, err)
	require.Equal(t, []hansard.ResultEntry{
		"1900.feb.1 SUPPLY BUDGET – https://x.test/historic-hansard/commons/1900/feb/01/supply-budget",
	}, entries)
}

func TestSittingsWritingsUseWrittenAnswerSections(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{base + "/sittings/1900/feb/1": sittingDay}}
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "budget", FromDate: "1900", ToDate: "1900", Way: "in_headers", Writings: true,
	}))
	require.NoError(t, err)
	require.Equal(t, []hansard.ResultEntry{
		"1900.feb.1 Budget Papers – https://x.test/historic-hansard/written_answers/1900/feb/01/budget-papers",
	}, entries)
}

func TestSittingsTextsScanSpeechBlocks(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{
		base + "/sittings/1900/feb/1": sittingDay,
		base + "/commons/1900/feb/01/army": `<div class="hentry member_contribution">the army budget is large</div>
			<div class="hentry">budget outside a speech</div>`,
		base + "/commons/1900/feb/01/supply-budget": `<div class="hentry member_contribution">no match here</div>`,
	}}
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "Budget", FromDate: "1900", ToDate: "1900", Way: "in_texts",
	}))
	require.NoError(t, err)
	require.Equal(t, []hansard.ResultEntry{
		"1900.feb.1 Army Estimates – https://x.test/historic-hansard/commons/1900/feb/01/army",
	}, entries)
}

const personPage = `<html><body>
<span class="speeches-by-year"><a href="/historic-hansard/people/mr-john-bright/1850">1850</a></span>
<span class="speeches-by-year"><a href="/historic-hansard/people/mr-john-bright/1851">1851</a></span>
</body></html>`

const yearPage1850 = `<html><body>
<p class="person-contribution"><a href="/historic-hansard/commons/1850/mar/04/corn-laws">CORN LAWS.</a>
 <span class="date">March 4, 1850</span></p>
<p class="person-contribution"><a href="/historic-hansard/commons/1850/mar/05/railways">Railways</a>
 <span class="date">March 5, 1850</span></p>
</body></html>`

const yearPage1851 = `<html><body>
<p class="person-contribution"><a href="/historic-hansard/commons/1851/feb/10/corn-duties">Corn duties</a>
 <span class="date">February 10, 1851</span></p>
</body></html>`

func personPages() *fakePages {
	return &fakePages{pages: map[string]string{
		base + "/people/mr-john-bright":      personPage,
		base + "/people/mr-john-bright/1850": yearPage1850,
		base + "/people/mr-john-bright/1851": yearPage1851,
	}}
}

func TestPersonWholePeriodFollowsYearLinks(t *testing.T) {
	t.Parallel()

	entries, err := newEngine(t, personPages()).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "0", ToDate: "0", Way: "in_headers", PersonInfo: strPtr("mr-john-bright"),
	}))
	require.NoError(t, err)
	require.Equal(t, []hansard.ResultEntry{
		"March 4, 1850 CORN LAWS. – https://x.test/historic-hansard/commons/1850/mar/04/corn-laws",
		"February 10, 1851 Corn duties – https://x.test/historic-hansard/commons/1851/feb/10/corn-duties",
	}, entries)
}

func TestPersonExplicitRangeFetchesIndexThenYears(t *testing.T) {
	t.Parallel()

	pages := personPages()
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "1849", ToDate: "1850", Way: "in_headers", PersonInfo: strPtr("mr-john-bright"),
	}))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{
		base + "/people/mr-john-bright",
		base + "/people/mr-john-bright/1849",
		base + "/people/mr-john-bright/1850",
	}, pages.fetched)
}

func TestPersonExplicitRangeWithoutListedYearsYieldsNothing(t *testing.T) {
	t.Parallel()

	pages := personPages()
	pages.pages[base+"/people/mr-john-bright"] = `<html><body><p>No speeches recorded</p></body></html>`
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "1850", ToDate: "1851", Way: "in_headers", PersonInfo: strPtr("mr-john-bright"),
	}))
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, []string{base + "/people/mr-john-bright"}, pages.fetched)
}

func TestPersonExplicitRangeUnknownSlugCostsOneFetch(t *testing.T) {
	t.Parallel()

	pages := &fakePages{}
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "1850", ToDate: "1860", Way: "in_headers", PersonInfo: strPtr("nobody"),
	}))
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, []string{base + "/people/nobody"}, pages.fetched)
}

func TestFatalIndexFetchAbortsExplicitRange(t *testing.T) {
	t.Parallel()

	pages := personPages()
	pages.fatal = map[string]bool{base + "/people/mr-john-bright": true}
	_, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "1850", ToDate: "1851", Way: "in_headers", PersonInfo: strPtr("mr-john-bright"),
	}))
	require.True(t, hansard.IsUnrecoverable(err))
	require.Len(t, pages.fetched, 1)
}

func TestPersonMissingIndexYieldsNothing(t *testing.T) {
	t.Parallel()

	entries, err := newEngine(t, &fakePages{}).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "0", ToDate: "0", Way: "in_headers", PersonInfo: strPtr("nobody"),
	}))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPersonTextsSkipMissingSubPages(t *testing.T) {
	t.Parallel()

	pages := personPages()
	pages.pages[base+"/commons/1850/mar/05/railways"] = `<div class="hentry member_contribution">Corn and rail</div>`
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "1850", ToDate: "1850", Way: "in_texts", PersonInfo: strPtr("mr-john-bright"),
	}))
	require.NoError(t, err)
	require.Equal(t, []hansard.ResultEntry{
		"March 5, 1850 Railways – https://x.test/historic-hansard/commons/1850/mar/05/railways",
	}, entries)
}

func TestFatalFetchAbortsTraversal(t *testing.T) {
	t.Parallel()

	pages := personPages()
	pages.fatal = map[string]bool{base + "/people/mr-john-bright/1850": true}
	_, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "corn", FromDate: "1850", ToDate: "1851", Way: "in_headers", PersonInfo: strPtr("mr-john-bright"),
	}))
	require.True(t, hansard.IsUnrecoverable(err))
	var fe *hansard.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, base+"/people/mr-john-bright/1850", fe.URL)
	require.Equal(t, []string{
		base + "/people/mr-john-bright",
		base + "/people/mr-john-bright/1850",
	}, pages.fetched)
}

func TestFatalSittingDayAbortsDateRangeScan(t *testing.T) {
	t.Parallel()

	fatalDay := base + "/sittings/1900/jan/3"
	pages := &fakePages{
		pages: map[string]string{base + "/sittings/1900/jan/1": sittingDay},
		fatal: map[string]bool{fatalDay: true},
	}
	entries, err := newEngine(t, pages).Traverse(context.Background(), request(t, hansard.ScrapeInput{
		Keyword: "budget", FromDate: "1900", ToDate: "1901", Way: "in_headers",
	}))
	require.Nil(t, entries)
	require.True(t, hansard.IsUnrecoverable(err))
	var fe *hansard.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, fatalDay, fe.URL)
	require.Equal(t, []string{
		base + "/sittings/1900/jan/1",
		base + "/sittings/1900/jan/2",
		fatalDay,
	}, pages.fetched)
}

func TestSittingsStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(t, &fakePages{}).Traverse(ctx, request(t, hansard.ScrapeInput{
		Keyword: "x", FromDate: "1900", ToDate: "1900", Way: "in_headers",
	}))
	require.ErrorIs(t, err, context.Canceled)
}

const peopleIndex = `<html><body><ul>
<li class="person"><a href="/historic-hansard/people/mr-winston-churchill">Mr Winston Churchill</a> <span>1874 - 1965</span></li>
<li class="person"><a href="/historic-hansard/people/lord-randolph-churchill">Lord Randolph Churchill</a> <span>1849 - 1895</span></li>
<li class="person"><a href="/historic-hansard/people/mr-joseph-chamberlain">Mr Joseph Chamberlain</a> <span>1836 - 1914</span></li>
</ul></body></html>`

func TestPeopleLookup(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{base + "/people/c": peopleIndex}}
	found, err := newEngine(t, pages).People(context.Background(), "churchill", hansard.FetchContext{Handle: "h"})
	require.NoError(t, err)
	require.Equal(t, []hansard.Person{
		{Name: "Mr Winston Churchill", Slug: "mr-winston-churchill", Dates: "1874 - 1965"},
		{Name: "Lord Randolph Churchill", Slug: "lord-randolph-churchill", Dates: "1849 - 1895"},
	}, found)

	none, err := newEngine(t, &fakePages{}).People(context.Background(), "Zed", hansard.FetchContext{Handle: "h"})
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = newEngine(t, pages).People(context.Background(), "  ", hansard.FetchContext{})
	require.ErrorIs(t, err, hansard.ErrInvalidRequest)
}

func TestPeopleLookupIgnoresCase(t *testing.T) {
	t.Parallel()

	pages := &fakePages{pages: map[string]string{base + "/people/m": `<html><body><ul>
<li class="person"><a href="/historic-hansard/people/mr-john-mcdonald">Mr John McDonald</a> <span>1850 - 1900</span></li>
<li class="person"><a href="/historic-hansard/people/mr-james-macdonald">Mr James Macdonald</a> <span>1840 - 1890</span></li>
</ul></body></html>`}}
	found, err := newEngine(t, pages).People(context.Background(), "mcdonald", hansard.FetchContext{Handle: "h"})
	require.NoError(t, err)
	require.Equal(t, []hansard.Person{
		{Name: "Mr John McDonald", Slug: "mr-john-mcdonald", Dates: "1850 - 1900"},
	}, found)
}
