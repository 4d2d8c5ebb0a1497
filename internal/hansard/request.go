package hansard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Way selects where the keyword is looked for.
type Way string

// Supported search ways.
const (
	WayHeaders Way = "in_headers"
	WayTexts   Way = "in_texts"
)

// Archive bounds accepted for explicit periods.
const (
	FirstYear = 1803
	LastYear  = 2005
)

// Scope is the closed set of traversal targets. Only PersonScope and
// SittingsScope implement it.
type Scope interface {
	isScope()
}

// PersonScope walks one member's contributions year by year.
type PersonScope struct {
	Slug string
}

// SittingsScope walks every sitting day of the period. Writings switches from
// full session pages to written answers.
type SittingsScope struct {
	Writings bool
}

func (PersonScope) isScope()   {}
func (SittingsScope) isScope() {}

// Period is a closed year range. The zero Period means the whole active
// period of a person.
type Period struct {
	From int
	To   int
}

// Whole reports whether the period covers the entire active period.
func (p Period) Whole() bool {
	return p.From == 0 && p.To == 0
}

// Requester identifies who receives notices and reports for a job.
type Requester struct {
	Handle      string
	DisplayName string
}

// ScrapeRequest is a validated, immutable search request.
type ScrapeRequest struct {
	Keyword   string
	Way       Way
	Scope     Scope
	Period    Period
	Requester Requester
}

// ScrapeInput is the loosely typed submission form collected by a front end.
type ScrapeInput struct {
	Keyword     string  `json:"keyword"`
	FromDate    string  `json:"from_date"`
	ToDate      string  `json:"to_date"`
	Way         string  `json:"way"`
	PersonInfo  *string `json:"person_info,omitempty"`
	Writings    bool    `json:"writings,omitempty"`
	Requester   string  `json:"requester"`
	DisplayName string  `json:"display_name,omitempty"`
}

// NewScrapeRequest validates the input and builds a ScrapeRequest. Keywords are
// upper-cased with inner whitespace collapsed, the same normalization page titles
// get, so labels, matching and filenames are stable.
func NewScrapeRequest(in ScrapeInput) (ScrapeRequest, error) {
	keyword := strings.ToUpper(strings.Join(strings.Fields(in.Keyword), " "))
	if keyword == "" {
		return ScrapeRequest{}, invalid("keyword is required")
	}
	way := Way(in.Way)
	if way != WayHeaders && way != WayTexts {
		return ScrapeRequest{}, invalid(fmt.Sprintf("unknown way %q", in.Way))
	}
	handle := strings.TrimSpace(in.Requester)
	if handle == "" {
		return ScrapeRequest{}, invalid("requester is required")
	}

	var scope Scope = SittingsScope{Writings: in.Writings}
	if in.PersonInfo != nil {
		slug := personSlug(*in.PersonInfo)
		if slug == "" {
			return ScrapeRequest{}, invalid("person_info must not be empty")
		}
		scope = PersonScope{Slug: slug}
	}

	period, err := parsePeriod(in.FromDate, in.ToDate)
	if err != nil {
		return ScrapeRequest{}, err
	}
	if _, ok := scope.(PersonScope); !ok && period.Whole() {
		return ScrapeRequest{}, invalid("an explicit period is required without person_info")
	}

	return ScrapeRequest{
		Keyword: keyword,
		Way:     way,
		Scope:   scope,
		Period:  period,
		Requester: Requester{
			Handle:      handle,
			DisplayName: strings.TrimSpace(in.DisplayName),
		},
	}, nil
}

// personSlug accepts a bare slug or a people URL and returns the slug.
func personSlug(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.LastIndex(raw, "/people/"); i >= 0 {
		raw = raw[i+len("/people/"):]
		if j := strings.IndexByte(raw, '/'); j >= 0 {
			raw = raw[:j]
		}
	}
	return strings.Trim(raw, "/")
}

func parsePeriod(from, to string) (Period, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "0" && to == "0" {
		return Period{}, nil
	}
	fromYear, err := strconv.Atoi(from)
	if err != nil {
		return Period{}, invalid(fmt.Sprintf("from_date %q is not a year", from))
	}
	toYear, err := strconv.Atoi(to)
	if err != nil {
		return Period{}, invalid(fmt.Sprintf("to_date %q is not a year", to))
	}
	if fromYear < FirstYear || toYear > LastYear {
		return Period{}, invalid(fmt.Sprintf("period must lie within %d-%d", FirstYear, LastYear))
	}
	if fromYear > toYear {
		return Period{}, invalid("from_date must not be after to_date")
	}
	return Period{From: fromYear, To: toYear}, nil
}

// Input converts the request back to its submission form.
func (r ScrapeRequest) Input() ScrapeInput {
	in := ScrapeInput{
		Keyword:     r.Keyword,
		FromDate:    strconv.Itoa(r.Period.From),
		ToDate:      strconv.Itoa(r.Period.To),
		Way:         string(r.Way),
		Requester:   r.Requester.Handle,
		DisplayName: r.Requester.DisplayName,
	}
	switch s := r.Scope.(type) {
	case PersonScope:
		slug := s.Slug
		in.PersonInfo = &slug
	case SittingsScope:
		in.Writings = s.Writings
	}
	return in
}

// Person returns the person scope and true when the request targets a member.
func (r ScrapeRequest) Person() (PersonScope, bool) {
	p, ok := r.Scope.(PersonScope)
	return p, ok
}

// Sittings returns the sittings scope and true when the request scans days.
func (r ScrapeRequest) Sittings() (SittingsScope, bool) {
	s, ok := r.Scope.(SittingsScope)
	return s, ok
}

// FetchContext returns the subset of the request needed to word fetch errors.
func (r ScrapeRequest) FetchContext() FetchContext {
	return FetchContext{
		Handle:   r.Requester.Handle,
		Keyword:  r.Keyword,
		FromDate: strconv.Itoa(r.Period.From),
		ToDate:   strconv.Itoa(r.Period.To),
	}
}

// MarshalJSON encodes the request in its submission form.
func (r ScrapeRequest) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.Input())
	if err != nil {
		return nil, fmt.Errorf("marshal scrape input: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes and re-validates a submission form.
func (r *ScrapeRequest) UnmarshalJSON(data []byte) error {
	var in ScrapeInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshal scrape input: %w", err)
	}
	req, err := NewScrapeRequest(in)
	if err != nil {
		return err
	}
	*r = req
	return nil
}

// FetchContext carries what the fetch service needs to tell a requester which
// request failed. An empty FromDate marks a person lookup rather than a scrape.
type FetchContext struct {
	Handle   string
	Keyword  string
	FromDate string
	ToDate   string
}
