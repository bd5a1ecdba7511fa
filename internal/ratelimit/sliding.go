// Package ratelimit bounds outbound check operations to a maximum count per
// rolling time window. This is the engine-side limiter for fetch pacing; the
// HTTP API uses golang.org/x/time/rate per client IP instead.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter over recorded request timestamps.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	stamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter allowing max requests per window.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a request may proceed now, i.e. fewer than max
// recorded timestamps fall within the window.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps) < l.max
}

// Record notes that a request was made now.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	l.stamps = append(l.stamps, now)
}

// WaitTime returns how long until the oldest in-window timestamp expires, or
// zero if a request is already permitted. Callers must actually sleep for
// this duration rather than skipping the request.
func (l *Limiter) WaitTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	if len(l.stamps) < l.max {
		return 0
	}
	return l.stamps[0].Add(l.window).Sub(now)
}

// prune drops timestamps that have fallen out of the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
