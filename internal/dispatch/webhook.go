package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/engine"
)

// HTTPWebhook POSTs events as JSON to a configured endpoint with a small
// retry budget for transient failures.
type HTTPWebhook struct {
	URL        string
	MaxRetries int
	client     *http.Client
}

// NewHTTPWebhook creates a webhook sink for the given endpoint.
func NewHTTPWebhook(url string) *HTTPWebhook {
	return &HTTPWebhook{
		URL:        url,
		MaxRetries: 2,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type webhookPayload struct {
	Event     engine.Event `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
}

func (w *HTTPWebhook) Deliver(ctx context.Context, event engine.Event) error {
	body, err := json.Marshal(webhookPayload{Event: event, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break // not retryable
		}
	}
	return fmt.Errorf("deliver webhook after %d attempts: %w", w.MaxRetries+1, lastErr)
}

// retryDelay is exponential with a little jitter, 500ms base.
func retryDelay(attempt int) time.Duration {
	base := 500 * math.Pow(2, float64(attempt-1))
	jitter := rand.Float64() * 0.25 * base
	return time.Duration(base+jitter) * time.Millisecond
}
