package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwatch/shelfwatch/internal/engine"
	"github.com/shelfwatch/shelfwatch/internal/models"
)

type recordingNotifier struct {
	events []engine.Event
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, event engine.Event) error {
	n.events = append(n.events, event)
	return n.err
}

type recordingSink struct {
	events []engine.Event
}

func (s *recordingSink) Deliver(ctx context.Context, event engine.Event) error {
	s.events = append(s.events, event)
	return nil
}

func sampleEvents() []engine.Event {
	now := time.Now()
	p := models.Product{ID: "p1", Name: "Widget"}
	return []engine.Event{
		{Type: engine.EventRestocked, Product: p, NewPrice: 24.99, At: now},
		{Type: engine.EventPriceDrop, Product: p, OldPrice: 29.99, NewPrice: 24.99, At: now},
		{Type: engine.EventMonitorError, Product: p, Detail: "timeout", At: now},
	}
}

func TestDispatchDeliversToAllCollaborators(t *testing.T) {
	g := NewGateway()
	n1 := &recordingNotifier{}
	n2 := &recordingNotifier{}
	sink := &recordingSink{}
	g.AddNotifier(n1)
	g.AddNotifier(n2)
	g.AddWebhookSink(sink)

	settings := models.DefaultSettings()
	settings.WebhookEnabled = true
	g.Dispatch(context.Background(), sampleEvents(), settings)

	// Notifiers see everything, including monitor-health notices.
	assert.Len(t, n1.events, 3)
	assert.Len(t, n2.events, 3)
	// Webhooks relay only the stock and price transitions.
	assert.Len(t, sink.events, 2)
	assert.Equal(t, engine.EventRestocked, sink.events[0].Type)
	assert.Equal(t, engine.EventPriceDrop, sink.events[1].Type)
}

func TestDispatchHonorsToggles(t *testing.T) {
	g := NewGateway()
	n := &recordingNotifier{}
	sink := &recordingSink{}
	g.AddNotifier(n)
	g.AddWebhookSink(sink)

	settings := models.DefaultSettings()
	settings.NotificationsEnabled = false
	settings.WebhookEnabled = false
	g.Dispatch(context.Background(), sampleEvents(), settings)

	assert.Empty(t, n.events)
	assert.Empty(t, sink.events)
}

func TestDispatchContinuesPastFailingNotifier(t *testing.T) {
	g := NewGateway()
	failing := &recordingNotifier{err: errors.New("telegram down")}
	healthy := &recordingNotifier{}
	g.AddNotifier(failing)
	g.AddNotifier(healthy)

	g.Dispatch(context.Background(), sampleEvents(), models.DefaultSettings())

	assert.Len(t, failing.events, 3)
	assert.Len(t, healthy.events, 3)
}
