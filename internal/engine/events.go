package engine

import (
	"time"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// EventType identifies a notable transition detected during a check.
type EventType string

const (
	// EventRestocked fires when a product transitions from out_of_stock or
	// unknown into in_stock.
	EventRestocked EventType = "restocked"
	// EventSoldOut fires when a product transitions from in_stock to
	// out_of_stock.
	EventSoldOut EventType = "sold_out"
	// EventPriceDrop fires when the price decreases by at least the
	// configured threshold percentage.
	EventPriceDrop EventType = "price_drop"
	// EventMonitorError fires once when a product enters the error state,
	// i.e. exactly on the failure that reaches the consecutive-error
	// threshold.
	EventMonitorError EventType = "monitor_error"
	// EventPossiblyGone fires once after the configured streak of
	// invalid-data results; the page may have been taken down. Monitoring
	// continues regardless.
	EventPossiblyGone EventType = "possibly_gone"
)

// Event carries the full product and price context for dispatch.
type Event struct {
	Type     EventType      `json:"type"`
	Product  models.Product `json:"product"`
	OldPrice float64        `json:"oldPrice,omitempty"`
	NewPrice float64        `json:"newPrice,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}
