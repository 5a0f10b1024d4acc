package middleware

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GlobalRateLimiter admits requests against a rolling one-minute window
// shared by every user. The counter and its reset timestamp form one
// read-modify-write section under a single mutex, so concurrent
// admission checks cannot double-spend the window.
type GlobalRateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	count     int
	resetAt   time.Time
	now       func() time.Time
	logger    *logrus.Logger
}

// NewGlobalRateLimiter creates a limiter with a one-minute window.
func NewGlobalRateLimiter(requestsPerMinute int, logger *logrus.Logger) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		limit:  requestsPerMinute,
		window: time.Minute,
		now:    time.Now,
		logger: logger,
	}
}

// Allow reports whether one more request fits in the current window and
// consumes a slot when it does. A rejected request consumes nothing.
func (r *GlobalRateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.After(r.resetAt) {
		r.count = 0
		r.resetAt = now.Add(r.window)
	}

	if r.count >= r.limit {
		r.logger.WithField("limit", r.limit).Warn("Global rate limit exceeded")
		return false
	}

	r.count++
	return true
}
