package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/shelfwatch/shelfwatch/internal/antidetect"
	"github.com/shelfwatch/shelfwatch/internal/models"
)

// BrowserFetcher renders pages in headless Chromium for sites that build the
// product page client-side or sit behind script challenges. The browser is
// launched once and shared; each tick gets its own page (tab) which is the
// per-tick fetch resource.
type BrowserFetcher struct {
	rotator *antidetect.Rotator

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewBrowser creates a browser fetcher. Chromium is launched lazily on first
// session open.
func NewBrowser(rotator *antidetect.Rotator) *BrowserFetcher {
	return &BrowserFetcher{rotator: rotator}
}

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	log.Info().Str("component", "fetch").Msg("Headless browser started")
	f.browser = browser
	f.launcher = l
	return browser, nil
}

// Browser returns the shared browser, launching it if needed. The purchase
// automation drives its own pages on the same instance so it shares cookies
// and session state with fetching.
func (f *BrowserFetcher) Browser() (*rod.Browser, error) {
	return f.connect()
}

// Shutdown closes the shared browser. Call at process exit.
func (f *BrowserFetcher) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			log.Warn().Err(err).Str("component", "fetch").Msg("Browser close failed")
		}
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Cleanup()
		f.launcher = nil
	}
}

type browserSession struct {
	browser *rod.Browser
	rotator *antidetect.Rotator

	mu   sync.Mutex
	page *rod.Page // lazily created, reused for the whole tick
}

// Open returns a session whose page is created lazily on first fetch.
func (f *BrowserFetcher) Open(ctx context.Context) (Session, error) {
	browser, err := f.connect()
	if err != nil {
		return nil, err
	}
	return &browserSession{browser: browser, rotator: f.rotator}, nil
}

func (s *browserSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			log.Debug().Err(err).Str("component", "fetch").Msg("Page close failed")
		}
		s.page = nil
	}
}

func (s *browserSession) Fetch(ctx context.Context, url string) (*models.RawSnapshot, error) {
	// Prefer a page some other party already has open on this URL (a user
	// viewing it, for instance). That view is a read-only race: scrape it in
	// place, never navigate or close it.
	if html, ok := s.existingViewHTML(url); ok {
		return snapshotFromHTML(html, url)
	}

	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	if page == nil {
		p, err := stealth.Page(s.browser)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		profile := s.rotator.Current()
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      profile.UserAgent,
			AcceptLanguage: profile.AcceptLanguage,
			Platform:       profile.Platform,
		}); err != nil {
			log.Warn().Err(err).Str("component", "fetch").Msg("Failed to set user agent")
		}
		s.mu.Lock()
		s.page = p
		s.mu.Unlock()
		page = p
	}

	page = page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return snapshotFromHTML(html, url)
}

// existingViewHTML looks for an independently-opened page already showing the
// URL and reads its HTML without disturbing it.
func (s *browserSession) existingViewHTML(url string) (string, bool) {
	pages, err := s.browser.Pages()
	if err != nil {
		return "", false
	}

	s.mu.Lock()
	own := s.page
	s.mu.Unlock()

	for _, p := range pages {
		if own != nil && p.TargetID == own.TargetID {
			continue
		}
		info, err := p.Info()
		if err != nil || info.URL != url {
			continue
		}
		html, err := p.HTML()
		if err != nil {
			continue
		}
		log.Debug().Str("component", "fetch").Str("url", url).Msg("Reused independently-opened view")
		return html, true
	}
	return "", false
}

func snapshotFromHTML(html, url string) (*models.RawSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return extractSnapshot(doc), nil
}
