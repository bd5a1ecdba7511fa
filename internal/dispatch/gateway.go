// Package dispatch fans detected events out to notification and webhook
// collaborators. Delivery failures are logged and never propagate back into
// the engine.
package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/shelfwatch/shelfwatch/internal/engine"
	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Notifier receives every event type, including monitor-health notices.
type Notifier interface {
	Notify(ctx context.Context, event engine.Event) error
}

// WebhookSink receives stock and price events for external relay.
type WebhookSink interface {
	Deliver(ctx context.Context, event engine.Event) error
}

// Gateway fans events out sequentially: all notifiers, then all webhook
// sinks. Order within one product's events is preserved.
type Gateway struct {
	notifiers []Notifier
	sinks     []WebhookSink
}

// NewGateway creates an empty gateway; register collaborators with
// AddNotifier and AddWebhookSink.
func NewGateway() *Gateway {
	return &Gateway{}
}

func (g *Gateway) AddNotifier(n Notifier) {
	g.notifiers = append(g.notifiers, n)
}

func (g *Gateway) AddWebhookSink(s WebhookSink) {
	g.sinks = append(g.sinks, s)
}

// stockEvent reports whether the event is one of the three product
// transitions that webhooks relay. Monitor-health notices go to notifiers
// only.
func stockEvent(t engine.EventType) bool {
	switch t {
	case engine.EventRestocked, engine.EventSoldOut, engine.EventPriceDrop:
		return true
	}
	return false
}

// Dispatch delivers the events under the current settings toggles. It always
// returns; one collaborator's failure never blocks the rest.
func (g *Gateway) Dispatch(ctx context.Context, events []engine.Event, settings models.Settings) {
	for _, event := range events {
		if settings.NotificationsEnabled {
			for _, n := range g.notifiers {
				if err := n.Notify(ctx, event); err != nil {
					log.Warn().Err(err).
						Str("component", "dispatch").
						Str("event", string(event.Type)).
						Str("product_id", event.Product.ID).
						Msg("Notifier delivery failed")
				}
			}
		}
		if settings.WebhookEnabled && stockEvent(event.Type) {
			for _, s := range g.sinks {
				if err := s.Deliver(ctx, event); err != nil {
					log.Warn().Err(err).
						Str("component", "dispatch").
						Str("event", string(event.Type)).
						Str("product_id", event.Product.ID).
						Msg("Webhook delivery failed")
				}
			}
		}
	}
}
