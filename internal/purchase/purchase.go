// Package purchase runs the add-to-cart automation triggered by a restock.
// The external action performs the actual form interaction; this layer only
// decides retry versus give-up and records the outcome. It never changes a
// product's monitor state.
package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/store"
)

// Result is reported by the external purchase-action collaborator.
type Result struct {
	Success          bool
	QuantityObtained int
	// PageMax is the per-order limit the page enforced, when lower than the
	// requested quantity.
	PageMax int
	Warning string
}

// Action attempts the purchase once. Each call acquires its own resources.
type Action interface {
	Attempt(ctx context.Context, product models.Product, quantity int) (*Result, error)
}

// Automation retries the action a bounded number of times with doubling
// delays before each attempt.
type Automation struct {
	MaxAttempts  int
	InitialDelay time.Duration

	action Action
	store  store.Store

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates the automation with the standard 3-attempt, 3s/6s/12s policy.
func New(action Action, st store.Store) *Automation {
	return &Automation{
		MaxAttempts:  3,
		InitialDelay: 3 * time.Second,
		action:       action,
		store:        st,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the bounded retry loop. It returns the final result when any
// attempt succeeds and an error once all attempts are exhausted.
func (a *Automation) Run(ctx context.Context, product models.Product) (*Result, error) {
	quantity := product.MaxQuantity
	if quantity < 1 {
		quantity = 1
	}

	delay := a.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= a.MaxAttempts; attempt++ {
		if err := a.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2

		result, err := a.action.Attempt(ctx, product, quantity)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).
				Str("component", "purchase").
				Str("product_id", product.ID).
				Int("attempt", attempt).
				Msg("Add-to-cart attempt failed")
			continue
		}

		if result.Success {
			detail := fmt.Sprintf("obtained %d of %d", result.QuantityObtained, quantity)
			if result.Warning != "" {
				detail += "; " + result.Warning
			}
			a.logOutcome(ctx, product.ID, "auto_add_to_cart", detail)
			log.Info().
				Str("component", "purchase").
				Str("product_id", product.ID).
				Int("quantity", result.QuantityObtained).
				Msg("Add-to-cart succeeded")
			return result, nil
		}

		lastErr = fmt.Errorf("attempt %d unsuccessful: %s", attempt, result.Warning)
	}

	a.logOutcome(ctx, product.ID, "auto_add_to_cart_failed",
		fmt.Sprintf("gave up after %d attempts: %v", a.MaxAttempts, lastErr))
	return nil, fmt.Errorf("add to cart for %s exhausted after %d attempts: %w",
		product.URL, a.MaxAttempts, lastErr)
}

func (a *Automation) logOutcome(ctx context.Context, productID, event, details string) {
	if a.store == nil {
		return
	}
	if err := a.store.AppendLog(ctx, models.NewLogEntry(productID, event, details)); err != nil {
		log.Warn().Err(err).Str("component", "purchase").Msg("Failed to append log entry")
	}
}
