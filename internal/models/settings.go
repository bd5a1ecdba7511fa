package models

// Settings is the process-wide monitoring configuration. It is mutated
// externally (user action through the API) and re-read by the engine at the
// start of every tick, never cached across ticks.
type Settings struct {
	CheckIntervalSeconds  int     `json:"checkIntervalSeconds"`
	JitterPercent         int     `json:"jitterPercent"`
	PriceDropThresholdPct float64 `json:"priceDropThresholdPercent"`
	MaxHistoryPerProduct  int     `json:"maxHistoryPerProduct"`
	AutoAddToCart         bool    `json:"autoAddToCart"`
	NotificationsEnabled  bool    `json:"notificationsEnabled"`
	AudioEnabled          bool    `json:"audioEnabled"`
	WebhookEnabled        bool    `json:"webhookEnabled"`
}

// DefaultSettings returns the settings used when nothing has been stored yet
// and as the fallback for fields missing from an imported bundle.
func DefaultSettings() Settings {
	return Settings{
		CheckIntervalSeconds:  60,
		JitterPercent:         20,
		PriceDropThresholdPct: 5,
		MaxHistoryPerProduct:  50,
		AutoAddToCart:         false,
		NotificationsEnabled:  true,
		AudioEnabled:          false,
		WebhookEnabled:        false,
	}
}

// SettingsPatch is a partial settings update. Only non-nil fields are applied.
type SettingsPatch struct {
	CheckIntervalSeconds  *int     `json:"checkIntervalSeconds,omitempty"`
	JitterPercent         *int     `json:"jitterPercent,omitempty"`
	PriceDropThresholdPct *float64 `json:"priceDropThresholdPercent,omitempty"`
	MaxHistoryPerProduct  *int     `json:"maxHistoryPerProduct,omitempty"`
	AutoAddToCart         *bool    `json:"autoAddToCart,omitempty"`
	NotificationsEnabled  *bool    `json:"notificationsEnabled,omitempty"`
	AudioEnabled          *bool    `json:"audioEnabled,omitempty"`
	WebhookEnabled        *bool    `json:"webhookEnabled,omitempty"`
}

// Apply merges the patch into s and returns the result.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.CheckIntervalSeconds != nil {
		s.CheckIntervalSeconds = *p.CheckIntervalSeconds
	}
	if p.JitterPercent != nil {
		s.JitterPercent = *p.JitterPercent
	}
	if p.PriceDropThresholdPct != nil {
		s.PriceDropThresholdPct = *p.PriceDropThresholdPct
	}
	if p.MaxHistoryPerProduct != nil {
		s.MaxHistoryPerProduct = *p.MaxHistoryPerProduct
	}
	if p.AutoAddToCart != nil {
		s.AutoAddToCart = *p.AutoAddToCart
	}
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.AudioEnabled != nil {
		s.AudioEnabled = *p.AudioEnabled
	}
	if p.WebhookEnabled != nil {
		s.WebhookEnabled = *p.WebhookEnabled
	}
	return s
}

// Normalize clamps settings to sane values so a bad import or patch cannot
// break the scheduler.
func (s Settings) Normalize() Settings {
	if s.CheckIntervalSeconds < 10 {
		s.CheckIntervalSeconds = 10
	}
	if s.JitterPercent < 0 {
		s.JitterPercent = 0
	}
	if s.JitterPercent > 100 {
		s.JitterPercent = 100
	}
	if s.PriceDropThresholdPct < 0 {
		s.PriceDropThresholdPct = 0
	}
	if s.MaxHistoryPerProduct < 1 {
		s.MaxHistoryPerProduct = 1
	}
	return s
}
