package hansard

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewScrapeRequestPersonWholePeriod(t *testing.T) {
	t.Parallel()

	req, err := NewScrapeRequest(ScrapeInput{
		Keyword:    "  budget ",
		FromDate:   "0",
		ToDate:     "0",
		Way:        "in_texts",
		PersonInfo: strPtr("mr-winston-churchill"),
		Requester:  "chat-1",
	})
	require.NoError(t, err)
	require.Equal(t, "BUDGET", req.Keyword)
	require.Equal(t, WayTexts, req.Way)
	require.True(t, req.Period.Whole())
	person, ok := req.Person()
	require.True(t, ok)
	require.Equal(t, "mr-winston-churchill", person.Slug)
}

func TestNewScrapeRequestSittings(t *testing.T) {
	t.Parallel()

	req, err := NewScrapeRequest(ScrapeInput{
		Keyword:   "budget",
		FromDate:  "1900",
		ToDate:    "1901",
		Way:       "in_headers",
		Writings:  true,
		Requester: "chat-2",
	})
	require.NoError(t, err)
	s, ok := req.Sittings()
	require.True(t, ok)
	require.True(t, s.Writings)
	require.Equal(t, Period{From: 1900, To: 1901}, req.Period)
}

func TestNewScrapeRequestNormalizesKeywordWhitespace(t *testing.T) {
	t.Parallel()

	req, err := NewScrapeRequest(ScrapeInput{
		Keyword: " supply \t budget ", FromDate: "1900", ToDate: "1900", Way: "in_headers", Requester: "h",
	})
	require.NoError(t, err)
	require.Equal(t, "SUPPLY BUDGET", req.Keyword)
}

func TestNewScrapeRequestAcceptsPeopleURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://api.parliament.uk/historic-hansard/people/mr-john-bright":      "mr-john-bright",
		"https://api.parliament.uk/historic-hansard/people/mr-john-bright/":     "mr-john-bright",
		"https://api.parliament.uk/historic-hansard/people/mr-john-bright/1850": "mr-john-bright",
		"/historic-hansard/people/mr-john-bright#speeches":                      "mr-john-bright",
		"mr-john-bright":     "mr-john-bright",
		" /mr-john-bright/ ": "mr-john-bright",
	}
	for in, want := range cases {
		req, err := NewScrapeRequest(ScrapeInput{
			Keyword: "coal", FromDate: "0", ToDate: "0", Way: "in_headers", PersonInfo: strPtr(in), Requester: "h",
		})
		require.NoError(t, err, in)
		person, ok := req.Person()
		require.True(t, ok)
		require.Equal(t, want, person.Slug, in)
	}
}

func TestNewScrapeRequestRejects(t *testing.T) {
	t.Parallel()

	base := ScrapeInput{Keyword: "tax", FromDate: "1900", ToDate: "1901", Way: "in_headers", Requester: "h"}
	cases := map[string]func(ScrapeInput) ScrapeInput{
		"empty keyword":     func(in ScrapeInput) ScrapeInput { in.Keyword = " "; return in },
		"unknown way":       func(in ScrapeInput) ScrapeInput { in.Way = "in_titles"; return in },
		"missing requester": func(in ScrapeInput) ScrapeInput { in.Requester = ""; return in },
		"non numeric":       func(in ScrapeInput) ScrapeInput { in.FromDate = "abc"; return in },
		"before archive":    func(in ScrapeInput) ScrapeInput { in.FromDate = "1700"; return in },
		"after archive":     func(in ScrapeInput) ScrapeInput { in.ToDate = "2010"; return in },
		"reversed":          func(in ScrapeInput) ScrapeInput { in.FromDate, in.ToDate = "1901", "1900"; return in },
		"whole without person": func(in ScrapeInput) ScrapeInput {
			in.FromDate, in.ToDate = "0", "0"
			return in
		},
		"half zero": func(in ScrapeInput) ScrapeInput {
			in.FromDate = "0"
			in.PersonInfo = strPtr("someone")
			return in
		},
		"blank person": func(in ScrapeInput) ScrapeInput { in.PersonInfo = strPtr(" / "); return in },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewScrapeRequest(mutate(base))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestScrapeRequestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	req, err := NewScrapeRequest(ScrapeInput{
		Keyword:     "coal",
		FromDate:    "1850",
		ToDate:      "1852",
		Way:         "in_headers",
		PersonInfo:  strPtr("mr-john-bright"),
		Requester:   "chat-9",
		DisplayName: "Ann",
	})
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.JSONEq(t, `{"keyword":"COAL","from_date":"1850","to_date":"1852","way":"in_headers",
		"person_info":"mr-john-bright","requester":"chat-9","display_name":"Ann"}`, string(data))

	var decoded ScrapeRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, req, decoded)
}

func TestFetchContextCarriesParameters(t *testing.T) {
	t.Parallel()

	req, err := NewScrapeRequest(ScrapeInput{
		Keyword: "rail", FromDate: "1880", ToDate: "1881", Way: "in_texts", Requester: "h1",
	})
	require.NoError(t, err)
	require.Equal(t, FetchContext{Handle: "h1", Keyword: "RAIL", FromDate: "1880", ToDate: "1881"}, req.FetchContext())
}

func TestFetchErrorMatching(t *testing.T) {
	t.Parallel()

	notFound := &FetchError{Kind: FetchNotFound, URL: "u"}
	require.ErrorIs(t, fmt.Errorf("wrap: %w", notFound), ErrNotFound)
	require.False(t, IsUnrecoverable(notFound))

	fatal := &FetchError{Kind: FetchUnrecoverable, URL: "u", Attempts: 3, Notified: true, Err: errors.New("boom")}
	wrapped := fmt.Errorf("traverse: %w", fatal)
	require.NotErrorIs(t, wrapped, ErrNotFound)
	require.True(t, IsUnrecoverable(wrapped))
	require.True(t, AlreadyNotified(wrapped))
	require.Equal(t, "fetch u: unrecoverable after 3 attempts: boom", fatal.Error())
}
