package models

import (
	"time"

	"github.com/google/uuid"
)

// StockStatus describes the availability of a product as last observed.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockLimited    StockStatus = "limited"
	StockUnknown    StockStatus = "unknown"
)

// MonitorState describes the monitoring lifecycle of a product.
type MonitorState string

const (
	// MonitorActive products are checked on the regular schedule.
	MonitorActive MonitorState = "active"
	// MonitorPaused products are excluded from scheduling but otherwise preserved.
	MonitorPaused MonitorState = "paused"
	// MonitorError products are still checked, but on a slower floor cadence.
	MonitorError MonitorState = "error"
)

// Snapshot is one historical observation of a product's price and stock.
type Snapshot struct {
	Timestamp   time.Time   `json:"timestamp"`
	Price       float64     `json:"price"`
	StockStatus StockStatus `json:"stockStatus"`
	Variants    []string    `json:"availableVariants,omitempty"`
}

// Product is a single monitored product page. Products are unique by URL.
type Product struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`

	CurrentPrice  float64  `json:"currentPrice"`
	PreviousPrice *float64 `json:"previousPrice,omitempty"`

	StockStatus StockStatus `json:"stockStatus"`

	MonitorState MonitorState `json:"monitorState"`
	ErrorCount   int          `json:"errorCount"`
	// InvalidCount tracks consecutive junk-classification results separately
	// from ErrorCount so the "page may be gone" notice only fires on a pure
	// invalid-data streak.
	InvalidCount int        `json:"invalidCount"`
	LastError    *string    `json:"lastError,omitempty"`
	LastChecked  *time.Time `json:"lastChecked,omitempty"`
	LastInStock  *time.Time `json:"lastInStock,omitempty"`

	// History holds snapshots newest first, capped at Settings.MaxHistoryPerProduct.
	History []Snapshot `json:"history,omitempty"`

	AutoAddToCart    bool              `json:"autoAddToCart"`
	SelectedVariants map[string]string `json:"selectedVariants,omitempty"`
	MaxQuantity      int               `json:"maxQuantity"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewProduct creates a product in its initial monitoring state.
func NewProduct(url string) Product {
	return Product{
		ID:           uuid.NewString(),
		URL:          url,
		StockStatus:  StockUnknown,
		MonitorState: MonitorActive,
		MaxQuantity:  1,
		CreatedAt:    time.Now().UTC(),
	}
}

// Eligible reports whether the product's monitor state permits scheduling.
func (p *Product) Eligible() bool {
	return p.MonitorState == MonitorActive || p.MonitorState == MonitorError
}

// RawSnapshot is a producer-agnostic candidate observation handed to the
// engine by a page fetcher. It has not yet passed validity classification.
type RawSnapshot struct {
	Name        string      `json:"name"`
	Price       float64     `json:"price"`
	StockStatus StockStatus `json:"stockStatus"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	Variants    []string    `json:"availableVariants,omitempty"`
}
