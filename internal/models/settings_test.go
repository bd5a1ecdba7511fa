package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsPatchAppliesOnlyPresentFields(t *testing.T) {
	var patch SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"checkIntervalSeconds":30,"autoAddToCart":true}`), &patch))

	got := patch.Apply(DefaultSettings())

	assert.Equal(t, 30, got.CheckIntervalSeconds)
	assert.True(t, got.AutoAddToCart)
	// Untouched fields keep their values.
	assert.Equal(t, 20, got.JitterPercent)
	assert.Equal(t, 5.0, got.PriceDropThresholdPct)
	assert.True(t, got.NotificationsEnabled)
}

func TestSettingsPatchCanDisableBooleans(t *testing.T) {
	var patch SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"notificationsEnabled":false}`), &patch))

	got := patch.Apply(DefaultSettings())
	assert.False(t, got.NotificationsEnabled)
}

func TestNormalizeClamps(t *testing.T) {
	s := Settings{
		CheckIntervalSeconds:  1,
		JitterPercent:         250,
		PriceDropThresholdPct: -3,
		MaxHistoryPerProduct:  0,
	}

	got := s.Normalize()

	assert.Equal(t, 10, got.CheckIntervalSeconds)
	assert.Equal(t, 100, got.JitterPercent)
	assert.Equal(t, 0.0, got.PriceDropThresholdPct)
	assert.Equal(t, 1, got.MaxHistoryPerProduct)
}
