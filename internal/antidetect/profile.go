// Package antidetect manages the outbound identity used for fetches: user
// agent, language and viewport texture. The scheduler rotates the active
// profile with a small probability each tick so long-run request patterns do
// not correlate with a static fingerprint.
package antidetect

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// defaultProfiles are a handful of common desktop browser identities.
var defaultProfiles = []models.Profile{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "Win32",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "MacIntel",
		ViewportWidth:  1680,
		ViewportHeight: 1050,
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		AcceptLanguage: "en-US,en;q=0.8",
		Platform:       "MacIntel",
		ViewportWidth:  1440,
		ViewportHeight: 900,
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "Linux x86_64",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		AcceptLanguage: "en-US,en;q=0.5",
		Platform:       "Win32",
		ViewportWidth:  1536,
		ViewportHeight: 864,
	},
}

// Rotator holds the active fingerprint profile and swaps it on demand.
type Rotator struct {
	mu       sync.RWMutex
	profiles []models.Profile
	current  int
	rng      *rand.Rand
}

// NewRotator creates a rotator over the given profiles, falling back to the
// built-in set when none are supplied. The random source is injected for
// deterministic tests.
func NewRotator(profiles []models.Profile, src rand.Source) *Rotator {
	if len(profiles) == 0 {
		profiles = defaultProfiles
	}
	r := &Rotator{
		profiles: profiles,
		rng:      rand.New(src),
	}
	r.current = r.rng.Intn(len(profiles))
	return r
}

// Current returns the active profile.
func (r *Rotator) Current() models.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[r.current]
}

// Profiles returns all known profiles, for export.
func (r *Rotator) Profiles() []models.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Rotate picks a different profile at random and makes it active.
func (r *Rotator) Rotate() models.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.profiles) > 1 {
		next := r.rng.Intn(len(r.profiles) - 1)
		if next >= r.current {
			next++
		}
		r.current = next
	}
	p := r.profiles[r.current]
	log.Debug().
		Str("component", "antidetect").
		Str("user_agent", p.UserAgent).
		Msg("Rotated fetch identity")
	return p
}
