package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle ограничивает частоту действий одного пользователя.
type throttle struct {
	mu       sync.Mutex
	limiters map[int64]*userLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newThrottle(perSecond float64, burst int) *throttle {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &throttle{
		limiters: make(map[int64]*userLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow сообщает, можно ли обработать действие пользователя сейчас.
func (t *throttle) Allow(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ul, ok := t.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.limiter.AllowN(now, 1)
}

// prune удаляет лимитеры пользователей, неактивных дольше idle.
func (t *throttle) prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idle)
	for id, ul := range t.limiters {
		if ul.lastSeen.Before(cutoff) {
			delete(t.limiters, id)
		}
	}
}
