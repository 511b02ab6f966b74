package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_Allow(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	th := newThrottle(1, 3)
	th.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, th.Allow(1), "burst action %d", i)
	}
	assert.False(t, th.Allow(1))
	assert.True(t, th.Allow(2), "other users are not affected")

	now = now.Add(time.Second)
	assert.True(t, th.Allow(1))
	assert.False(t, th.Allow(1))
}

func TestThrottle_Prune(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	th := newThrottle(1, 1)
	th.now = func() time.Time { return now }

	th.Allow(1)
	now = now.Add(5 * time.Minute)
	th.Allow(2)
	now = now.Add(6 * time.Minute)

	th.prune()
	assert.NotContains(t, th.limiters, int64(1))
	assert.Contains(t, th.limiters, int64(2))
}

func TestNewThrottle_Defaults(t *testing.T) {
	th := newThrottle(0, 0)
	assert.Equal(t, 1, th.burst)
	assert.True(t, th.Allow(1))
}
