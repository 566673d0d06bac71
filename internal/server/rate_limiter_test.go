package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterExhaustsBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(), "token %d", i)
	}
	assert.False(t, rl.allow())
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	time.Sleep(120 * time.Millisecond)
	assert.True(t, rl.allow())
}

func TestRateLimiterSanitizesArguments(t *testing.T) {
	rl := newRateLimiter(0, 0)

	// A zero capacity is clamped to one token per second.
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}

func TestRateLimiterNeverExceedsCapacity(t *testing.T) {
	rl := newRateLimiter(2, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}
