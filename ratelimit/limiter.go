// Package ratelimit throttles outbound Vercel API calls with a token bucket
// per key. The client keys buckets by API token so that several integrations
// sharing one process do not starve each other.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Limiter hands out call slots per key. A key can also be paused until a
// point in time, which is how the client honours X-RateLimit-Reset.
type Limiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets map[string]*bucket
}

// bucket holds up to perSecond tokens and refills continuously.
type bucket struct {
	tokens      float64
	perSecond   float64
	updated     time.Time
	pausedUntil time.Time
}

// New creates a limiter on the wall clock.
func New() *Limiter {
	return NewWithClock(clock.New())
}

// NewWithClock creates a limiter driven by c.
func NewWithClock(c clock.Clock) *Limiter {
	return &Limiter{
		clock:   c,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a slot for key if one is free. perSecond <= 0 means unlimited,
// though a paused key is still refused.
func (l *Limiter) Allow(key string, perSecond int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.take(key, perSecond) == 0
}

// Wait blocks until a slot for key is free or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string, perSecond int) error {
	for {
		l.mu.Lock()
		delay := l.take(key, perSecond)
		l.mu.Unlock()
		if delay == 0 {
			return nil
		}

		t := l.clock.Timer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Pause refuses calls for key until the given time and empties its bucket.
// An earlier pause is never shortened.
func (l *Limiter) Pause(key string, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(key, 0)
	if until.After(b.pausedUntil) {
		b.pausedUntil = until
	}
	b.tokens = 0
	b.updated = until
}

// Reset forgets all state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// take consumes a token and returns 0, or returns how long to wait before
// trying again. Callers hold l.mu.
func (l *Limiter) take(key string, perSecond int) time.Duration {
	now := l.clock.Now()

	b, ok := l.buckets[key]
	if ok && now.Before(b.pausedUntil) {
		return b.pausedUntil.Sub(now)
	}
	if perSecond <= 0 {
		return 0
	}
	b = l.bucket(key, float64(perSecond))
	b.refill(now)

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	missing := 1 - b.tokens
	return time.Duration(missing / b.perSecond * float64(time.Second))
}

// bucket returns the bucket for key, creating a full one when absent.
func (l *Limiter) bucket(key string, perSecond float64) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: perSecond, perSecond: perSecond, updated: l.clock.Now()}
		l.buckets[key] = b
		return b
	}
	if perSecond > 0 && b.perSecond != perSecond {
		b.perSecond = perSecond
	}
	return b
}

func (b *bucket) refill(now time.Time) {
	if now.Before(b.updated) {
		return
	}
	b.tokens += now.Sub(b.updated).Seconds() * b.perSecond
	if b.tokens > b.perSecond {
		b.tokens = b.perSecond
	}
	b.updated = now
}
