package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBundleRoundTrip(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"exportedAt": "2026-08-01T12:00:00Z",
		"products": [
			{"id": "p1", "url": "https://a.example.com/1", "name": "Widget"},
			{"id": "p2", "url": "https://a.example.com/2", "name": "Gadget"}
		],
		"settings": {"checkIntervalSeconds": 45}
	}`)

	b, err := ParseBundle(data)
	require.NoError(t, err)

	assert.Equal(t, 1, b.Version)
	require.Len(t, b.Products, 2)
	assert.Equal(t, "Widget", b.Products[0].Name)
	assert.Equal(t, 45, b.Settings.CheckIntervalSeconds)
	// Fields absent from the payload fall back to defaults.
	assert.Equal(t, 50, b.Settings.MaxHistoryPerProduct)
}

func TestParseBundleRejectsMissingVersion(t *testing.T) {
	_, err := ParseBundle([]byte(`{"products": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing version")
}

func TestParseBundleRejectsNewerVersion(t *testing.T) {
	_, err := ParseBundle([]byte(`{"version": 99, "products": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported bundle version")
}

func TestParseBundleRejectsMissingProducts(t *testing.T) {
	_, err := ParseBundle([]byte(`{"version": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing products")
}

func TestParseBundleAllowsEmptyProducts(t *testing.T) {
	b, err := ParseBundle([]byte(`{"version": 1, "products": []}`))
	require.NoError(t, err)
	assert.Empty(t, b.Products)
}

func TestParseBundleRejectsDuplicateURLs(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"products": [
			{"id": "p1", "url": "https://a.example.com/1"},
			{"id": "p2", "url": "https://a.example.com/1"}
		]
	}`)
	_, err := ParseBundle(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate product url")
}

func TestParseBundleRejectsProductWithoutURL(t *testing.T) {
	data := []byte(`{"version": 1, "products": [{"id": "p1"}]}`)
	_, err := ParseBundle(data)
	require.Error(t, err)
}

func TestParseBundleNormalizesSettings(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"products": [],
		"settings": {"checkIntervalSeconds": 1, "jitterPercent": 900}
	}`)
	b, err := ParseBundle(data)
	require.NoError(t, err)
	assert.Equal(t, 10, b.Settings.CheckIntervalSeconds)
	assert.Equal(t, 100, b.Settings.JitterPercent)
}
