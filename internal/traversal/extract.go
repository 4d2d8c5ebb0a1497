package traversal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/hansard-crawler/internal/hansard"
)

// link is an anchor found on an archive page.
type link struct {
	Title string
	Href  string
	Date  string
}

// House section anchors on a sitting day page, commons first.
var (
	sessionSections = []string{"commons", "lords"}
	writtenSections = []string{"commons_written_answers", "lords_written_answers"}
)

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// yearLinks returns the per-year contribution links from a person page.
func yearLinks(doc *goquery.Document) []string {
	var out []string
	doc.Find("span.speeches-by-year").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Find("a[href]").First().Attr("href"); ok {
			out = append(out, href)
		}
	})
	return out
}

// contributions returns the titled, dated items of a person's year page.
func contributions(doc *goquery.Document) []link {
	var out []link
	doc.Find("p.person-contribution").Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		out = append(out, link{
			Title: clean(a.Text()),
			Href:  href,
			Date:  clean(s.Find("span.date").First().Text()),
		})
	})
	return out
}

// sittingLinks returns the item links listed after each house anchor.
func sittingLinks(doc *goquery.Document, writings bool) []link {
	sections := sessionSections
	if writings {
		sections = writtenSections
	}
	var out []link
	for _, id := range sections {
		anchor := doc.Find("h3#" + id).First()
		if anchor.Length() == 0 {
			continue
		}
		anchor.Next().Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			out = append(out, link{Title: clean(a.Text()), Href: href})
		})
	}
	return out
}

// contributionText joins the upper-cased, whitespace-collapsed text of every
// speech block, one space between blocks.
func contributionText(doc *goquery.Document) string {
	var blocks []string
	doc.Find("div.hentry.member_contribution").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, strings.ToUpper(clean(s.Text())))
	})
	return strings.Join(blocks, " ")
}

// people returns the members listed on a surname index page whose name
// contains surname in any letter case.
func people(doc *goquery.Document, surname string) []hansard.Person {
	surname = strings.ToLower(surname)
	var out []hansard.Person
	doc.Find("li.person").Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		name := clean(a.Text())
		if !strings.Contains(strings.ToLower(name), surname) {
			return
		}
		out = append(out, hansard.Person{
			Name:  name,
			Slug:  slugFromHref(href),
			Dates: clean(s.Find("span").First().Text()),
		})
	})
	return out
}

func slugFromHref(href string) string {
	href = strings.Trim(hansard.StripFragment(href), "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

// clean collapses runs of whitespace so labels stay on one line.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
