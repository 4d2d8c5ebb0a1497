package hansard

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the root of the historic Hansard archive.
const DefaultBaseURL = "https://api.parliament.uk/historic-hansard"

// PageSize is the number of entries per result page.
const PageSize = 5

// Months lists the month path segments used by sitting day pages.
var Months = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// LastMonthDay bounds the day loop; invalid dates are left to 404.
const LastMonthDay = 31

// Source builds archive URLs under a base URL.
type Source struct {
	base string
}

// NewSource returns a Source rooted at base, or the public archive when empty.
func NewSource(base string) Source {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return Source{base: base}
}

// Base returns the archive root.
func (s Source) Base() string {
	return s.base
}

// PeopleIndex is the listing of members whose surname starts with letter.
func (s Source) PeopleIndex(letter string) string {
	return fmt.Sprintf("%s/people/%s", s.base, strings.ToLower(letter))
}

// Person is a member's index page.
func (s Source) Person(slug string) string {
	return fmt.Sprintf("%s/people/%s", s.base, slug)
}

// PersonYear is a member's contributions for one year.
func (s Source) PersonYear(slug string, year int) string {
	return fmt.Sprintf("%s/people/%s/%d", s.base, slug, year)
}

// SittingDay is the list of sittings held on one day.
func (s Source) SittingDay(year int, month string, day int) string {
	return fmt.Sprintf("%s/sittings/%d/%s/%d", s.base, year, month, day)
}

// Resolve turns an href found on page into an absolute URL.
func Resolve(page, href string) string {
	href = strings.TrimSpace(href)
	base, err := url.Parse(page)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// StripFragment removes any #fragment from a URL.
func StripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}
