package scraper

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/peto/internal/interfaces"
)

// cardSelectors is the selector set for one job board's listing DOM. Kept as
// data so a board markup change is a one-place edit.
type cardSelectors struct {
	Card        string
	Link        string
	Title       string
	Company     string
	CompanyLink string
	Location    string
	PostedLabel string
	Description string
}

// defaultSelectors matches the generic listing markup the capability targets.
func defaultSelectors() cardSelectors {
	return cardSelectors{
		Card:        "li.job-card, div.job-card, [data-job-id]",
		Link:        "a.job-card__link, a[data-job-link], h3 a",
		Title:       ".job-card__title, h3",
		Company:     ".job-card__company, .company-name",
		CompanyLink: ".job-card__company a, .company-name a",
		Location:    ".job-card__location, .job-location",
		PostedLabel: ".job-card__posted, time",
		Description: ".job-card__description, .job-description",
	}
}

// parseCards extracts job cards from listing HTML. Cards without a posting
// link are skipped; field-level extraction is best-effort and validation of
// required fields happens downstream per item.
func parseCards(listingHTML string, baseURL string, sel cardSelectors) ([]interfaces.JobCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing base URL %s: %w", baseURL, err)
	}

	var cards []interfaces.JobCard
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(sel.Link).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		descriptionHTML, _ := goquery.OuterHtml(card.Find(sel.Description).First())

		cards = append(cards, interfaces.JobCard{
			PostingURL:      resolveURL(base, href),
			Title:           text(card, sel.Title),
			CompanyName:     text(card, sel.Company),
			CompanyURL:      attrURL(base, card, sel.CompanyLink, "href"),
			Location:        text(card, sel.Location),
			PostedLabel:     text(card, sel.PostedLabel),
			DescriptionHTML: descriptionHTML,
		})
	})

	return cards, nil
}

func text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func attrURL(base *url.URL, s *goquery.Selection, selector, attr string) string {
	v, ok := s.Find(selector).First().Attr(attr)
	if !ok {
		return ""
	}
	return resolveURL(base, v)
}

// resolveURL absolutizes href against the listing URL and strips tracking
// query/fragment noise so the posting URL is a stable natural key.
func resolveURL(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return strings.TrimSpace(href)
	}
	resolved := base.ResolveReference(u)
	resolved.Fragment = ""
	resolved.RawQuery = ""
	return resolved.String()
}

// NormalizeDescription converts a posting's detail HTML to markdown for the
// analyzer. The converter drops scripts and styles on its own.
func NormalizeDescription(descriptionHTML, pageURL string) (string, error) {
	if strings.TrimSpace(descriptionHTML) == "" {
		return "", nil
	}
	converter := md.NewConverter(pageURL, true, nil)
	markdown, err := converter.ConvertString(descriptionHTML)
	if err != nil {
		return "", fmt.Errorf("failed to convert description to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
