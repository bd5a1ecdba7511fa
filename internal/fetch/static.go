package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/shelfwatch/internal/antidetect"
	"github.com/shelfwatch/shelfwatch/internal/models"
)

// StaticFetcher retrieves pages over plain HTTP and extracts product data
// from the static HTML: OpenGraph metadata, JSON-LD product markup and a few
// text heuristics.
type StaticFetcher struct {
	Timeout time.Duration
	rotator *antidetect.Rotator
}

// NewStatic creates an HTTP fetcher using the rotator's active identity.
func NewStatic(rotator *antidetect.Rotator) *StaticFetcher {
	return &StaticFetcher{
		Timeout: 30 * time.Second,
		rotator: rotator,
	}
}

type staticSession struct {
	client  *http.Client
	rotator *antidetect.Rotator
}

// Open creates a session sharing one client and cookie jar across the tick,
// so consecutive checks look like one browsing session rather than a series
// of cold connections.
func (f *StaticFetcher) Open(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &staticSession{
		client: &http.Client{
			Timeout: f.Timeout,
			Jar:     jar,
		},
		rotator: f.rotator,
	}, nil
}

func (s *staticSession) Close() {
	s.client.CloseIdleConnections()
}

func (s *staticSession) Fetch(ctx context.Context, url string) (*models.RawSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	profile := s.rotator.Current()
	req.Header.Set("User-Agent", profile.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", profile.AcceptLanguage)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("get %s: HTTP %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	return extractSnapshot(doc), nil
}

// extractSnapshot pulls the snapshot candidate out of a parsed document. It
// deliberately extracts whatever it can find, including junk titles from
// error pages; the engine's classifier decides validity.
func extractSnapshot(doc *goquery.Document) *models.RawSnapshot {
	snap := &models.RawSnapshot{StockStatus: models.StockUnknown}

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		snap.Name = strings.TrimSpace(v)
	} else {
		snap.Name = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		snap.ImageURL = strings.TrimSpace(v)
	}

	if price, status, ok := fromJSONLD(doc); ok {
		snap.Price = price
		if status != models.StockUnknown {
			snap.StockStatus = status
		}
	}

	if snap.Price == 0 {
		for _, sel := range []string{
			`meta[property="og:price:amount"]`,
			`meta[property="product:price:amount"]`,
			`meta[itemprop="price"]`,
		} {
			if v, ok := doc.Find(sel).Attr("content"); ok {
				if p := parsePrice(v); p > 0 {
					snap.Price = p
					break
				}
			}
		}
	}

	if snap.StockStatus == models.StockUnknown {
		snap.StockStatus = availabilityFromText(doc)
	}

	return snap
}

// fromJSONLD walks embedded schema.org markup looking for a Product offer.
func fromJSONLD(doc *goquery.Document) (float64, models.StockStatus, bool) {
	var price float64
	status := models.StockUnknown
	found := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return true
		}
		if p, s, ok := walkLD(data); ok {
			price, status, found = p, s, true
			return false
		}
		return true
	})

	return price, status, found
}

func walkLD(node any) (float64, models.StockStatus, bool) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if p, s, ok := walkLD(item); ok {
				return p, s, ok
			}
		}
	case map[string]any:
		if offers, ok := v["offers"]; ok {
			if p, s, ok := offerValues(offers); ok {
				return p, s, ok
			}
		}
		if graph, ok := v["@graph"]; ok {
			return walkLD(graph)
		}
	}
	return 0, models.StockUnknown, false
}

func offerValues(offers any) (float64, models.StockStatus, bool) {
	switch v := offers.(type) {
	case []any:
		for _, o := range v {
			if p, s, ok := offerValues(o); ok {
				return p, s, ok
			}
		}
	case map[string]any:
		price := parsePrice(stringify(v["price"]))
		if price == 0 {
			price = parsePrice(stringify(v["lowPrice"]))
		}
		return price, mapAvailability(stringify(v["availability"])), true
	}
	return 0, models.StockUnknown, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func mapAvailability(s string) models.StockStatus {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "limitedavailability"):
		return models.StockLimited
	case strings.Contains(s, "outofstock"), strings.Contains(s, "soldout"), strings.Contains(s, "discontinued"):
		return models.StockOutOfStock
	case strings.Contains(s, "instock"), strings.Contains(s, "preorder"):
		return models.StockInStock
	}
	return models.StockUnknown
}

// availabilityFromText falls back to page-text hints when no structured
// availability was found.
func availabilityFromText(doc *goquery.Document) models.StockStatus {
	body := strings.ToLower(doc.Find("body").Text())
	switch {
	case strings.Contains(body, "out of stock"), strings.Contains(body, "sold out"),
		strings.Contains(body, "currently unavailable"):
		return models.StockOutOfStock
	case strings.Contains(body, "only a few left"), strings.Contains(body, "low stock"):
		return models.StockLimited
	case strings.Contains(body, "add to cart"), strings.Contains(body, "add to basket"),
		strings.Contains(body, "buy now"):
		return models.StockInStock
	}
	return models.StockUnknown
}

// parsePrice extracts a positive price from text that may include currency
// symbols and thousands separators.
func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	// "1.299,99" style: comma is the decimal separator.
	if li, lc := strings.LastIndex(cleaned, "."), strings.LastIndex(cleaned, ","); lc > li {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}
