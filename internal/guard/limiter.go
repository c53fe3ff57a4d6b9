// Package guard holds the per-agent admission state of the service: rate
// buckets, idempotency entries and version counters. Each type is safe for
// concurrent use on its own.
package guard

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// RateLimiter keeps one fixed-window bucket per agent. A bucket starts with
// Capacity tokens and is refilled to Capacity once RefillPeriod has elapsed
// since its last refill.
type RateLimiter struct {
	capacity int
	period   time.Duration
	now      Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter. A capacity <= 0 admits every call.
func NewRateLimiter(capacity int, period time.Duration, now Clock) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		capacity: capacity,
		period:   period,
		now:      now,
		buckets:  make(map[string]*bucket),
	}
}

// TryConsume takes one token from agentID's bucket. When the bucket is empty
// it reports false and the time left until the next refill.
func (l *RateLimiter) TryConsume(agentID string) (ok bool, retryAfter time.Duration) {
	if l.capacity <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, exists := l.buckets[agentID]
	if !exists {
		b = &bucket{tokens: l.capacity, lastRefill: now}
		l.buckets[agentID] = b
	}
	if elapsed := now.Sub(b.lastRefill); elapsed >= l.period {
		b.tokens = l.capacity
		b.lastRefill = now
	}
	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	retryAfter = l.period - now.Sub(b.lastRefill)
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return false, retryAfter
}

// Remaining reports the tokens left for agentID without consuming one.
func (l *RateLimiter) Remaining(agentID string) int {
	if l.capacity <= 0 {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[agentID]
	if !ok || l.now().Sub(b.lastRefill) >= l.period {
		return l.capacity
	}
	return b.tokens
}
