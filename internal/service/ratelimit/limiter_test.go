package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowAndRefill(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.2.3.4", 2, 1))
	assert.True(t, l.Allow("1.2.3.4", 2, 1))
	assert.False(t, l.Allow("1.2.3.4", 2, 1))
	assert.True(t, l.Allow("5.6.7.8", 2, 1), "buckets are per key")

	now = now.Add(500 * time.Millisecond)
	assert.False(t, l.Allow("1.2.3.4", 2, 1))
	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("1.2.3.4", 2, 1))

	now = now.Add(time.Hour)
	assert.True(t, l.Allow("1.2.3.4", 2, 1))
	assert.True(t, l.Allow("1.2.3.4", 2, 1))
	assert.False(t, l.Allow("1.2.3.4", 2, 1), "refill is capped at capacity")
}

func TestLimiter_Prune(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	l.Allow("old", 1, 1)
	now = now.Add(10 * time.Minute)
	l.Allow("new", 1, 1)

	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}
