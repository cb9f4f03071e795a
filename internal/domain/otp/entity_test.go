package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cutoff := Cutoff(now)

	assert.Equal(t, now.Add(-10*time.Minute), cutoff)
	assert.True(t, now.Add(-9*time.Minute).After(cutoff))
	assert.False(t, now.Add(-RetentionWindow).After(cutoff))
}
