package server

import (
	"sync"
	"time"
)

// senderLimiter is a fixed-window rate limiter keyed by sender number.
// Each sender has an independent counter that resets after the window.
type senderLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*windowBucket
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

func newSenderLimiter(limit int, window time.Duration) *senderLimiter {
	return &senderLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*windowBucket),
	}
}

// Allow reports whether the sender is within its rate limit. Safe for
// concurrent use.
func (l *senderLimiter) Allow(sender string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	b, ok := l.buckets[sender]
	if !ok || now.After(b.resetAt) {
		l.buckets[sender] = &windowBucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}
