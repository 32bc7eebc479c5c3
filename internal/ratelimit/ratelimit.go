// Package ratelimit provides an in-memory sliding-window rate limiter,
// used to throttle login attempts per client address.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is an in-memory sliding-window rate limiter. Single-node only;
// state is lost on restart.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]int64
}

// New constructs a limiter allowing limit events per key within window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]int64),
	}
}

// Allow reports whether another event for key fits in the window, pruning
// expired entries on each call and dropping empty buckets to keep memory
// bounded.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	nowMs := time.Now().UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.buckets[key]
	pruneIdx := 0
	for pruneIdx < len(ts) && ts[pruneIdx] < windowStart {
		pruneIdx++
	}
	ts = ts[pruneIdx:]

	if len(ts) >= l.limit {
		if len(ts) == 0 {
			delete(l.buckets, key)
		} else {
			l.buckets[key] = ts
		}
		return false
	}

	l.buckets[key] = append(ts, nowMs)
	return true
}
