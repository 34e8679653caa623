package interfaces

import (
	"context"
)

// JobCard is one visible result card on a listing page: the stable posting
// identity plus the raw fields the extractor pulled from the card detail.
type JobCard struct {
	// PostingURL is the canonical posting URL, the natural key for
	// duplicate suppression.
	PostingURL  string
	Title       string
	CompanyName string
	CompanyURL  string
	Location    string
	// PostedLabel is the relative posted-time text ("2 days ago").
	PostedLabel string
	// DescriptionHTML is the raw detail-pane HTML, normalized to markdown
	// before the analyzer sees it.
	DescriptionHTML string
}

// ListingSession is an open, filtered job-listing view. NextCards surfaces
// more result cards per call (scrolling/paging is internal); it returns an
// empty slice when no new cards appeared, and the caller bounds consecutive
// no-progress calls to guarantee termination.
type ListingSession interface {
	NextCards(ctx context.Context) ([]JobCard, error)
	Close() error
}

// Scraper is the opaque browser-automation capability. Search navigates to a
// filtered listing for the role/location; a failure here is fatal for the
// whole mission, while per-card extraction failures inside the session fail
// only the single item.
type Scraper interface {
	Search(ctx context.Context, role, location string) (ListingSession, error)
	Close() error
}
