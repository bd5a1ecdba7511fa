package engine

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults. The cap keeps degraded products retried at a bounded
// frequency; jitter decorrelates retries across products with similar error
// counts.
const (
	DefaultBackoffBase   = 1 * time.Second
	DefaultBackoffCap    = 5 * time.Minute
	DefaultBackoffJitter = 20 // percent
)

// BackoffPolicy computes retry delays from consecutive-error counts using
// capped exponential growth with percentage jitter. The random source is
// injected so delays are deterministic under test.
type BackoffPolicy struct {
	Base      time.Duration
	Cap       time.Duration
	JitterPct int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoffPolicy creates a policy with the standard base/cap/jitter and the
// given random source.
func NewBackoffPolicy(src rand.Source) *BackoffPolicy {
	return &BackoffPolicy{
		Base:      DefaultBackoffBase,
		Cap:       DefaultBackoffCap,
		JitterPct: DefaultBackoffJitter,
		rng:       rand.New(src),
	}
}

// Delay returns the backoff delay for the given consecutive-error count.
// The result never exceeds Cap.
func (b *BackoffPolicy) Delay(errorCount int) time.Duration {
	if errorCount < 0 {
		errorCount = 0
	}

	// Exponent clamp avoids overflow long before the cap applies anyway.
	exp := errorCount
	if exp > 30 {
		exp = 30
	}
	raw := float64(b.Base) * math.Pow(2, float64(exp))
	capped := math.Min(raw, float64(b.Cap))

	b.mu.Lock()
	r := b.rng.Float64()
	b.mu.Unlock()

	// Jitter of ±JitterPct percent, clamped back under the cap.
	factor := 1 + float64(b.JitterPct)/100*(2*r-1)
	jittered := capped * factor
	if jittered > float64(b.Cap) {
		jittered = float64(b.Cap)
	}
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}
