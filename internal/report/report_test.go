package report

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

func mustRequest(t *testing.T, in hansard.ScrapeInput) hansard.ScrapeRequest {
	t.Helper()
	in.Requester = "chat-1"
	if in.Way == "" {
		in.Way = "in_headers"
	}
	req, err := hansard.NewScrapeRequest(in)
	require.NoError(t, err)
	return req
}

func entries(n int) []hansard.ResultEntry {
	out := make([]hansard.ResultEntry, n)
	for i := range out {
		out[i] = hansard.ResultEntry(fmt.Sprintf("entry %d", i))
	}
	return out
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 4, 5, 6, 10, 12} {
		pages := Paginate(entries(n), 5)
		require.Len(t, pages, (n+4)/5, "n=%d", n)
		var flat []hansard.ResultEntry
		for i, p := range pages {
			require.NotEmpty(t, p)
			require.LessOrEqual(t, len(p), 5)
			if i < len(pages)-1 {
				require.Len(t, p, 5)
			}
			flat = append(flat, p...)
		}
		if n == 0 {
			require.Nil(t, flat)
			continue
		}
		require.Equal(t, entries(n), flat)
	}
}

func TestHeader(t *testing.T) {
	t.Parallel()

	sittings := mustRequest(t, hansard.ScrapeInput{Keyword: "budget", FromDate: "1900", ToDate: "1901"})
	require.Equal(t, `По ключевому слову "BUDGET" найдено объектов: 2; по заседаниям; за период с 1900 по 1901`,
		Header(sittings, 2))

	writings := mustRequest(t, hansard.ScrapeInput{Keyword: "coal", FromDate: "1850", ToDate: "1850", Writings: true})
	require.Equal(t, `По ключевому слову "COAL" найдено объектов: 0; по письмам; за период с 1850 по 1850`,
		Header(writings, 0))

	person := mustRequest(t, hansard.ScrapeInput{
		Keyword: "war", FromDate: "0", ToDate: "0", PersonInfo: ptr("mr-winston-churchill"),
	})
	require.Equal(t,
		`По ключевому слову "WAR" найдено объектов: 7; по персоне Mr Winston Churchill; за весь период активности персоны.`,
		Header(person, 7))
}

func TestFilename(t *testing.T) {
	t.Parallel()

	require.Equal(t, "BUDGET.sittings.1900.1901.txt",
		Filename(mustRequest(t, hansard.ScrapeInput{Keyword: "budget", FromDate: "1900", ToDate: "1901"})))
	require.Equal(t, "COAL.writings.1850.1851.txt",
		Filename(mustRequest(t, hansard.ScrapeInput{Keyword: "coal", FromDate: "1850", ToDate: "1851", Writings: true})))
	require.Equal(t, "mr-john-bright.CORN.0.0.txt",
		Filename(mustRequest(t, hansard.ScrapeInput{
			Keyword: "corn", FromDate: "0", ToDate: "0", PersonInfo: ptr("mr-john-bright"),
		})))
}

func TestBuildAndRender(t *testing.T) {
	t.Parallel()

	req := mustRequest(t, hansard.ScrapeInput{Keyword: "budget", FromDate: "1900", ToDate: "1901"})
	file := Build(req, entries(6))
	require.Equal(t, "BUDGET.sittings.1900.1901.txt", file.Filename)
	require.Len(t, file.Pages, 3)
	require.Equal(t, hansard.ResultPage{hansard.ResultEntry(Header(req, 6))}, file.Pages[0])
	require.Equal(t, entries(6), file.Entries())

	want := Header(req, 6) + "\n\n" +
		"entry 0\nentry 1\nentry 2\nentry 3\nentry 4\n\n" +
		"entry 5\n\n"
	require.Equal(t, want, string(Render(file)))
}

func TestBuildWithoutEntries(t *testing.T) {
	t.Parallel()

	req := mustRequest(t, hansard.ScrapeInput{Keyword: "budget", FromDate: "1900", ToDate: "1900"})
	file := Build(req, nil)
	require.Len(t, file.Pages, 1)
	require.Empty(t, file.Entries())
	require.Equal(t, Header(req, 0)+"\n\n", string(Render(file)))
}

func ptr(s string) *string { return &s }
