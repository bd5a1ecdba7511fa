package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BundleVersion is the current export format version.
const BundleVersion = 1

// Profile is an outbound identity used for fetching: user agent plus the
// header and viewport texture that goes with it.
type Profile struct {
	UserAgent      string `json:"userAgent"`
	AcceptLanguage string `json:"acceptLanguage"`
	Platform       string `json:"platform"`
	ViewportWidth  int    `json:"viewportWidth"`
	ViewportHeight int    `json:"viewportHeight"`
}

// Bundle is the exported/imported state of the whole service.
type Bundle struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Products   []Product `json:"products"`
	Settings   Settings  `json:"settings"`
	Profiles   []Profile `json:"profiles,omitempty"`
}

// bundleProbe mirrors the fields import validation cares about, with Settings
// as a patch so fields absent from the payload fall back to defaults.
type bundleProbe struct {
	Version    *int          `json:"version"`
	ExportedAt time.Time     `json:"exportedAt"`
	Products   []Product     `json:"products"`
	Settings   SettingsPatch `json:"settings"`
	Profiles   []Profile     `json:"profiles"`
}

// ParseBundle validates and decodes an exported bundle. Presence of version
// and products is required; unknown or missing settings fields fall back to
// defaults.
func ParseBundle(data []byte) (*Bundle, error) {
	var probe bundleProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	if probe.Version == nil {
		return nil, fmt.Errorf("invalid bundle: missing version")
	}
	if *probe.Version > BundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", *probe.Version)
	}
	if probe.Products == nil {
		return nil, fmt.Errorf("invalid bundle: missing products")
	}

	seen := make(map[string]struct{}, len(probe.Products))
	for i := range probe.Products {
		p := &probe.Products[i]
		if p.URL == "" {
			return nil, fmt.Errorf("invalid bundle: product %d has no url", i)
		}
		if _, dup := seen[p.URL]; dup {
			return nil, fmt.Errorf("invalid bundle: duplicate product url %s", p.URL)
		}
		seen[p.URL] = struct{}{}
	}

	return &Bundle{
		Version:    *probe.Version,
		ExportedAt: probe.ExportedAt,
		Products:   probe.Products,
		Settings:   probe.Settings.Apply(DefaultSettings()).Normalize(),
		Profiles:   probe.Profiles,
	}, nil
}
