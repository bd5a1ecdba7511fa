package fetch

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/antidetect"
	"github.com/shelfwatch/shelfwatch/internal/models"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractSnapshotFromJSONLD(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
		<title>Sony WH-1000XM5 | Example Shop</title>
		<meta property="og:title" content="Sony WH-1000XM5 Wireless Headphones">
		<meta property="og:image" content="https://cdn.example.com/xm5.jpg">
		<script type="application/ld+json">
		{
			"@type": "Product",
			"name": "Sony WH-1000XM5",
			"offers": {
				"@type": "Offer",
				"price": "349.99",
				"availability": "https://schema.org/InStock"
			}
		}
		</script>
	</head><body></body></html>`)

	snap := extractSnapshot(doc)

	assert.Equal(t, "Sony WH-1000XM5 Wireless Headphones", snap.Name)
	assert.Equal(t, "https://cdn.example.com/xm5.jpg", snap.ImageURL)
	assert.Equal(t, 349.99, snap.Price)
	assert.Equal(t, models.StockInStock, snap.StockStatus)
}

func TestExtractSnapshotFromGraphAndOfferList(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
		<title>Widget</title>
		<script type="application/ld+json">
		{"@graph": [
			{"@type": "BreadcrumbList"},
			{"@type": "Product", "offers": [
				{"price": 24.99, "availability": "http://schema.org/OutOfStock"}
			]}
		]}
		</script>
	</head><body></body></html>`)

	snap := extractSnapshot(doc)

	assert.Equal(t, 24.99, snap.Price)
	assert.Equal(t, models.StockOutOfStock, snap.StockStatus)
}

func TestExtractSnapshotMetaPriceFallback(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
		<title>Widget Pro</title>
		<meta property="product:price:amount" content="19.90">
	</head><body>Add to cart</body></html>`)

	snap := extractSnapshot(doc)

	assert.Equal(t, "Widget Pro", snap.Name)
	assert.Equal(t, 19.90, snap.Price)
	assert.Equal(t, models.StockInStock, snap.StockStatus)
}

func TestExtractSnapshotTextAvailabilityHints(t *testing.T) {
	cases := []struct {
		body string
		want models.StockStatus
	}{
		{"This item is currently unavailable.", models.StockOutOfStock},
		{"Hurry, only a few left!", models.StockLimited},
		{"<button>Buy now</button>", models.StockInStock},
		{"Nothing to see here.", models.StockUnknown},
	}
	for _, tc := range cases {
		doc := docFromHTML(t, "<html><head><title>Widget</title></head><body>"+tc.body+"</body></html>")
		snap := extractSnapshot(doc)
		assert.Equal(t, tc.want, snap.StockStatus, "body %q", tc.body)
	}
}

func TestExtractSnapshotKeepsJunkTitleForClassifier(t *testing.T) {
	// Extraction never filters; the classifier owns validity.
	doc := docFromHTML(t, `<html><head><title>Just a moment...</title></head><body></body></html>`)
	snap := extractSnapshot(doc)
	assert.Equal(t, "Just a moment...", snap.Name)
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"349.99":      349.99,
		"$349.99":     349.99,
		"€1.299,99":   1299.99,
		"1,299.99":    1299.99,
		"24,99 €":     24.99,
		"":            0,
		"free":        0,
		"contact us":  0,
		"199":         199,
		"USD 2,499.00": 2499,
	}
	for in, want := range cases {
		assert.Equal(t, want, parsePrice(in), "input %q", in)
	}
}

func TestStaticSessionSetsIdentityHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte(`<html><head><title>Widget Pro</title></head><body></body></html>`))
	}))
	defer srv.Close()

	rotator := antidetect.NewRotator(nil, rand.NewSource(1))
	f := NewStatic(rotator)
	session, err := f.Open(context.Background())
	require.NoError(t, err)
	defer session.Close()

	snap, err := session.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	profile := rotator.Current()
	assert.Equal(t, profile.UserAgent, gotUA)
	assert.Equal(t, profile.AcceptLanguage, gotLang)
	assert.Equal(t, "Widget Pro", snap.Name)
}

func TestStaticSessionServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewStatic(antidetect.NewRotator(nil, rand.NewSource(1)))
	session, err := f.Open(context.Background())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}
