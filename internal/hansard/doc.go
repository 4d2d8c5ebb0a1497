// Package hansard defines the domain types and collaborator interfaces shared by
// the crawl-and-cache pipeline: scrape requests, report pages, fetch errors, and
// the store, fetcher, ledger and delivery contracts the pipeline is wired from.
package hansard
