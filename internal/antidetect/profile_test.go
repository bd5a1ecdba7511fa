package antidetect

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatorDefaultsWhenEmpty(t *testing.T) {
	r := NewRotator(nil, rand.NewSource(1))
	require.NotEmpty(t, r.Profiles())
	assert.NotEmpty(t, r.Current().UserAgent)
	assert.NotEmpty(t, r.Current().AcceptLanguage)
}

func TestRotateChangesIdentity(t *testing.T) {
	r := NewRotator(nil, rand.NewSource(42))

	before := r.Current()
	for i := 0; i < 20; i++ {
		after := r.Rotate()
		assert.NotEqual(t, before.UserAgent, after.UserAgent, "rotation %d", i)
		before = after
	}
}

func TestRotateSingleProfileIsStable(t *testing.T) {
	profiles := NewRotator(nil, rand.NewSource(1)).Profiles()[:1]
	r := NewRotator(profiles, rand.NewSource(1))

	assert.Equal(t, profiles[0], r.Rotate())
	assert.Equal(t, profiles[0], r.Current())
}
