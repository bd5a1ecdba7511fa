package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

func TestMemoryProductCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	p := models.NewProduct("https://a.example.com/1")
	require.NoError(t, m.AddProduct(ctx, p))

	got, err := m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.URL, got.URL)

	byURL, err := m.GetProductByURL(ctx, p.URL)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byURL.ID)

	got.Name = "Widget"
	require.NoError(t, m.SaveProduct(ctx, *got))
	got, err = m.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)

	require.NoError(t, m.DeleteProduct(ctx, p.ID))
	_, err = m.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetProductByURL(ctx, p.URL)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRejectsDuplicateURL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	require.NoError(t, m.AddProduct(ctx, models.NewProduct("https://a.example.com/1")))
	err := m.AddProduct(ctx, models.NewProduct("https://a.example.com/1"))
	assert.ErrorIs(t, err, ErrDuplicateURL)
}

func TestMemoryLoadProductsOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	base := time.Now()
	for i, url := range []string{"https://a.example.com/c", "https://a.example.com/a", "https://a.example.com/b"} {
		p := models.NewProduct(url)
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, m.AddProduct(ctx, p))
	}

	products, err := m.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "https://a.example.com/c", products[0].URL)
	assert.Equal(t, "https://a.example.com/b", products[2].URL)
}

func TestMemorySettingsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	s, err := m.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s)

	s.CheckIntervalSeconds = 30
	require.NoError(t, m.SaveSettings(ctx, s))
	got, err := m.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, got.CheckIntervalSeconds)
}

func TestMemoryLogsNewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)

	for _, ev := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.AppendLog(ctx, models.NewLogEntry("", ev, "")))
	}

	logs, err := m.RecentLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "d", logs[0].Event)
	assert.Equal(t, "b", logs[2].Event)

	limited, err := m.RecentLogs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryReplaceAll(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)
	require.NoError(t, m.AddProduct(ctx, models.NewProduct("https://a.example.com/old")))

	incoming := models.NewProduct("https://a.example.com/new")
	settings := models.DefaultSettings()
	settings.CheckIntervalSeconds = 90

	require.NoError(t, m.ReplaceAll(ctx, &models.Bundle{
		Version:  models.BundleVersion,
		Products: []models.Product{incoming},
		Settings: settings,
	}))

	products, err := m.LoadProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "https://a.example.com/new", products[0].URL)

	got, err := m.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, got.CheckIntervalSeconds)
}
