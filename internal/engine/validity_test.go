package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

func validSnapshot() models.RawSnapshot {
	return models.RawSnapshot{
		Name:        "Sony WH-1000XM5 Wireless Headphones",
		Price:       349.99,
		StockStatus: models.StockInStock,
		ImageURL:    "https://cdn.example.com/images/wh1000xm5.jpg",
	}
}

func TestClassifierAcceptsGenuinePage(t *testing.T) {
	c := NewClassifier()
	assert.NoError(t, c.Validate(validSnapshot()))
}

func TestClassifierRejectsShortOrMissingName(t *testing.T) {
	c := NewClassifier()

	for _, name := range []string{"", "  ", "ab", " a "} {
		snap := validSnapshot()
		snap.Name = name
		err := c.Validate(snap)
		require.Error(t, err, "name %q", name)
		assert.True(t, IsInvalidData(err))
	}
}

func TestClassifierRejectsBotChallengePages(t *testing.T) {
	c := NewClassifier()

	// Cloudflare interstitials surface as a plausible-looking page with a
	// challenge title; these must never be treated as product data.
	titles := []string{
		"Just a moment...",
		"Attention Required! | Cloudflare",
		"Access Denied",
		"Robot Check",
		"Amazon.com Page Not Found",
	}
	for _, title := range titles {
		snap := validSnapshot()
		snap.Name = title
		err := c.Validate(snap)
		require.Error(t, err, "title %q", title)
		assert.True(t, IsInvalidData(err))
	}
}

func TestClassifierRejectsGenericSiteTitle(t *testing.T) {
	c := NewClassifier()

	snap := validSnapshot()
	snap.Name = "Amazon.com"
	require.Error(t, c.Validate(snap))

	// Case and padding do not matter.
	snap.Name = "  WALMART.COM  "
	require.Error(t, c.Validate(snap))
}

func TestClassifierRequiresPriceOrImage(t *testing.T) {
	c := NewClassifier()

	snap := validSnapshot()
	snap.Price = 0
	snap.ImageURL = ""
	require.Error(t, c.Validate(snap))

	// Either one alone is enough.
	snap = validSnapshot()
	snap.Price = 0
	assert.NoError(t, c.Validate(snap))

	snap = validSnapshot()
	snap.ImageURL = ""
	assert.NoError(t, c.Validate(snap))

	// A too-short image reference does not count as an image.
	snap = validSnapshot()
	snap.Price = 0
	snap.ImageURL = "/img.png"
	require.Error(t, c.Validate(snap))
}

func TestClassifierRejectsSentenceShapedName(t *testing.T) {
	c := NewClassifier()

	snap := validSnapshot()
	snap.Name = "Sorry, the page you are looking for could not be found. Please check your URL."
	require.Error(t, c.Validate(snap))
}

func TestClassifierKeepsLongProductTitles(t *testing.T) {
	c := NewClassifier()

	// Long but title-shaped: plenty of words, almost no filler.
	snap := validSnapshot()
	snap.Name = "LEGO Star Wars Millennium Falcon 75192 Ultimate Collector Series Building Kit"
	assert.NoError(t, c.Validate(snap))
}

func TestNameValidSelfCheck(t *testing.T) {
	c := NewClassifier()

	assert.True(t, c.NameValid("Sony WH-1000XM5 Wireless Headphones"))
	assert.False(t, c.NameValid("Just a moment..."))
	assert.False(t, c.NameValid("ab"))
	assert.False(t, c.NameValid("Amazon.com"))
}
