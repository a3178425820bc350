// Package ratelimit provides per-sender admission control for inbound chat
// messages. A sliding window of admitted-message timestamps is kept per
// identity; excess traffic inside the window is rejected.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// maxTrackedKeys caps the number of tracked identities to prevent
	// memory exhaustion from rotating sender addresses.
	maxTrackedKeys = 4096

	// DefaultWindow is the sliding window duration.
	DefaultWindow = 60 * time.Second

	// DefaultMaxHits is the max admitted messages per identity within a window.
	DefaultMaxHits = 10
)

// Limiter is a sliding-window rate limiter keyed by sender identity.
// Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	maxHits int
	hits    map[string][]time.Time
	now     func() time.Time
}

// New creates a limiter with the default window and cap.
func New() *Limiter {
	return NewWithLimits(DefaultWindow, DefaultMaxHits)
}

// NewWithLimits creates a limiter with an explicit window and cap.
func NewWithLimits(window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		window:  window,
		maxHits: maxHits,
		hits:    make(map[string][]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Allow reports whether the identity may send another message, and records
// the admission timestamp when it may. Expired timestamps are pruned lazily
// on each call.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[identity][:0]
	for _, ts := range l.hits[identity] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.maxHits {
		l.hits[identity] = recent
		return false
	}

	if len(l.hits) >= maxTrackedKeys {
		l.evictStale(cutoff)
	}

	l.hits[identity] = append(recent, now)
	return true
}

// evictStale drops identities whose every admission has left the window,
// then hard-evicts arbitrary entries if the cap is still exceeded.
// Caller holds the lock.
func (l *Limiter) evictStale(cutoff time.Time) {
	for k, stamps := range l.hits {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.hits, k)
		}
	}
	for len(l.hits) >= maxTrackedKeys {
		for k := range l.hits {
			delete(l.hits, k)
			break
		}
	}
}
