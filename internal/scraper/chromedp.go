package scraper

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
)

const defaultSearchURL = "https://jobs.example.com/search"

// Browser is the chromedp-backed Scraper capability. One Browser owns one
// Chrome process; each Search opens a tab-scoped listing session.
type Browser struct {
	logger      arbor.ILogger
	userAgent   string
	headless    bool
	pageTimeout time.Duration
	searchURL   string
	selectors   cardSelectors

	mu              sync.Mutex
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	started         bool
}

// NewBrowser creates the capability without launching Chrome; the process
// starts lazily on the first Search.
func NewBrowser(cfg *common.ScraperConfig, logger arbor.ILogger) *Browser {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return &Browser{
		logger:      logger,
		userAgent:   userAgent,
		headless:    cfg.Headless,
		pageTimeout: common.ParseDuration(cfg.PageTimeout, 45*time.Second),
		searchURL:   defaultSearchURL,
		selectors:   defaultSelectors(),
	}
}

func (b *Browser) start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(b.userAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	}
	if b.headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			b.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	// Startup probe so a missing Chrome binary fails the mission, not the
	// first page load.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	b.allocatorCtx = allocatorCtx
	b.allocatorCancel = allocatorCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.started = true

	b.logger.Info().
		Bool("headless", b.headless).
		Dur("page_timeout", b.pageTimeout).
		Msg("Browser capability started")
	return nil
}

// Search opens a filtered listing for the role/location. A navigation failure
// here is fatal for the caller's whole mission.
func (b *Browser) Search(ctx context.Context, role, location string) (interfaces.ListingSession, error) {
	if err := b.start(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("keywords", role)
	if location != "" {
		query.Set("location", location)
	}
	listingURL := b.searchURL + "?" + query.Encode()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)

	navCtx, navCancel := context.WithTimeout(tabCtx, b.pageTimeout)
	defer navCancel()
	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(listingURL),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open listing for %q: %w", role, err)
	}

	b.logger.Info().
		Str("role", role).
		Str("location", location).
		Str("url", listingURL).
		Msg("Listing session opened")

	return &listingSession{
		browser:    b,
		tabCtx:     tabCtx,
		tabCancel:  tabCancel,
		listingURL: listingURL,
		seen:       make(map[string]bool),
	}, nil
}

// Close shuts down the Chrome process.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.browserCancel()
	b.allocatorCancel()
	b.started = false
	b.logger.Info().Msg("Browser capability closed")
	return nil
}

// listingSession is one open, filtered listing tab. NextCards scrolls the
// results once and returns only cards not surfaced by earlier calls.
type listingSession struct {
	browser    *Browser
	tabCtx     context.Context
	tabCancel  context.CancelFunc
	listingURL string

	mu   sync.Mutex
	seen map[string]bool
}

func (s *listingSession) NextCards(ctx context.Context) ([]interfaces.JobCard, error) {
	pageCtx, cancel := context.WithTimeout(s.tabCtx, s.browser.pageTimeout)
	defer cancel()

	var listingHTML string
	err := chromedp.Run(pageCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &listingHTML),
	)
	if err != nil {
		// Respect the caller's context too; tab context wins otherwise.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read listing page: %w", err)
	}

	cards, err := parseCards(listingHTML, s.listingURL, s.browser.selectors)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make([]interfaces.JobCard, 0, len(cards))
	for _, card := range cards {
		if s.seen[card.PostingURL] {
			continue
		}
		s.seen[card.PostingURL] = true
		fresh = append(fresh, card)
	}

	s.browser.logger.Debug().
		Int("cards_on_page", len(cards)).
		Int("new_cards", len(fresh)).
		Msg("Listing scroll surfaced cards")

	return fresh, nil
}

func (s *listingSession) Close() error {
	s.tabCancel()
	return nil
}

var _ interfaces.Scraper = (*Browser)(nil)
