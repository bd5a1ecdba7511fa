// Package fetch obtains product page snapshots. Two implementations exist:
// a plain HTTP fetcher that parses static HTML, and a headless-browser
// fetcher for pages that require rendering. Both hand the engine a
// producer-agnostic RawSnapshot; classification happens in the engine.
package fetch

import (
	"context"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Session is the shared per-tick fetch resource (a reusable HTTP client with
// its cookie jar, or a reusable browser page). The scheduler owns a session
// exclusively for the duration of one tick, acquires it lazily, and releases
// it at tick end regardless of per-product outcomes.
type Session interface {
	// Fetch retrieves a snapshot candidate for the URL. Unreachable content
	// returns an error, never a panic into the classifier.
	Fetch(ctx context.Context, url string) (*models.RawSnapshot, error)
	// Close releases the underlying resource. Safe to call once.
	Close()
}

// Fetcher opens fetch sessions.
type Fetcher interface {
	Open(ctx context.Context) (Session, error)
}
