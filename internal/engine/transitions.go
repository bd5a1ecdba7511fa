package engine

import (
	"strings"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Updates holds the fields a successful check persists. Detect is a pure
// function: replaying the same inputs yields identical updates and events,
// nothing is written until the caller applies and saves.
type Updates struct {
	Name          string
	ImageURL      string
	CurrentPrice  float64
	PreviousPrice *float64
	StockStatus   models.StockStatus
	LastChecked   time.Time
	LastInStock   *time.Time
	History       []models.Snapshot
}

// Apply writes the updates onto p and clears its error state: a classified
// valid check is the only thing that resets ErrorCount.
func (u Updates) Apply(p *models.Product) {
	p.Name = u.Name
	p.ImageURL = u.ImageURL
	p.CurrentPrice = u.CurrentPrice
	if u.PreviousPrice != nil {
		p.PreviousPrice = u.PreviousPrice
	}
	p.StockStatus = u.StockStatus
	lc := u.LastChecked
	p.LastChecked = &lc
	if u.LastInStock != nil {
		p.LastInStock = u.LastInStock
	}
	p.History = u.History
	p.ErrorCount = 0
	p.InvalidCount = 0
	p.LastError = nil
	if p.MonitorState == models.MonitorError {
		p.MonitorState = models.MonitorActive
	}
}

// Detect compares the stored product against a validated snapshot and yields
// the updates to persist plus the notable events.
func Detect(old models.Product, snap models.RawSnapshot, settings models.Settings, now time.Time) (Updates, []Event) {
	u := Updates{
		Name:         preferName(snap.Name, old.Name),
		ImageURL:     preferImage(snap.ImageURL, old.ImageURL),
		CurrentPrice: snap.Price,
		StockStatus:  snap.StockStatus,
		LastChecked:  now,
	}

	var events []Event

	// Restock: transition into in_stock from out_of_stock or unknown only.
	// in_stock -> in_stock and limited -> in_stock are not restocks.
	if snap.StockStatus == models.StockInStock &&
		(old.StockStatus == models.StockOutOfStock || old.StockStatus == models.StockUnknown) {
		ts := now
		u.LastInStock = &ts
		events = append(events, Event{
			Type: EventRestocked, Product: old, NewPrice: snap.Price, At: now,
		})
	}

	if snap.StockStatus == models.StockOutOfStock && old.StockStatus == models.StockInStock {
		events = append(events, Event{
			Type: EventSoldOut, Product: old, OldPrice: old.CurrentPrice, At: now,
		})
	}

	// Any decrease records previousPrice; only threshold-crossing decreases
	// emit the event.
	if old.CurrentPrice > 0 && snap.Price > 0 && snap.Price < old.CurrentPrice {
		prev := old.CurrentPrice
		u.PreviousPrice = &prev
		dropPct := (old.CurrentPrice - snap.Price) / old.CurrentPrice * 100
		if dropPct >= settings.PriceDropThresholdPct {
			events = append(events, Event{
				Type:     EventPriceDrop,
				Product:  old,
				OldPrice: old.CurrentPrice,
				NewPrice: snap.Price,
				At:       now,
			})
		}
	}

	u.History = pushHistory(old.History, models.Snapshot{
		Timestamp:   now,
		Price:       snap.Price,
		StockStatus: snap.StockStatus,
		Variants:    snap.Variants,
	}, settings.MaxHistoryPerProduct)

	return u, events
}

// pushHistory prepends the newest snapshot and truncates the oldest entries
// past the cap.
func pushHistory(history []models.Snapshot, snap models.Snapshot, max int) []models.Snapshot {
	if max < 1 {
		max = 1
	}
	out := make([]models.Snapshot, 0, len(history)+1)
	out = append(out, snap)
	out = append(out, history...)
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// preferName keeps the stored name unless the new one is non-trivial.
func preferName(newName, oldName string) string {
	if len([]rune(strings.TrimSpace(newName))) >= 3 {
		return strings.TrimSpace(newName)
	}
	return oldName
}

func preferImage(newURL, oldURL string) string {
	if len(strings.TrimSpace(newURL)) >= 10 {
		return strings.TrimSpace(newURL)
	}
	return oldURL
}
