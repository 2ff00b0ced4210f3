package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity is the number of actions a single identity may take per period.
	DefaultCapacity = 5

	// DefaultRefillPeriod is how often a bucket is topped back up.
	DefaultRefillPeriod = time.Minute
)

// Limiter is a per-key token bucket with lazy, whole-period refill.
//
// Every elapsed period refills the bucket by a full capacity, capped at
// capacity. Partial periods grant nothing, and the refill clock only advances
// by whole periods so the fractional remainder is carried into the next call.
type Limiter[K comparable] struct {
	capacity int
	period   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	buckets map[K]*bucket
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time

	refs int // callers between acquire and release; guarded by Limiter.mu
}

// Option configures a Limiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a limiter. Non-positive arguments fall back to the defaults.
func New[K comparable](capacity int, period time.Duration, opts ...Option) *Limiter[K] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if period <= 0 {
		period = DefaultRefillPeriod
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Limiter[K]{
		capacity: capacity,
		period:   period,
		now:      o.now,
		buckets:  make(map[K]*bucket),
	}
}

// TryConsume takes one token for key. It reports false when the bucket is
// empty; the caller must then not perform the action.
func (l *Limiter[K]) TryConsume(key K) bool {
	b := l.acquire(key)
	defer l.release(b)

	b.mu.Lock()
	defer b.mu.Unlock()

	l.refill(b, l.now())
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Tokens returns the tokens currently available to key, after refill.
func (l *Limiter[K]) Tokens(key K) int {
	b := l.acquire(key)
	defer l.release(b)

	b.mu.Lock()
	defer b.mu.Unlock()

	l.refill(b, l.now())
	return b.tokens
}

// Sweep drops buckets that a refill would bring back to full capacity.
// Such a bucket is indistinguishable from a fresh one, so eviction loses
// nothing. Buckets in use by TryConsume or Tokens are skipped. It returns
// the number of buckets removed.
func (l *Limiter[K]) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.refs > 0 {
			continue
		}
		b.mu.Lock()
		l.refill(b, now)
		full := b.tokens >= l.capacity
		b.mu.Unlock()
		if full {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked buckets.
func (l *Limiter[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// acquire returns key's bucket, creating it if needed, and pins it against
// Sweep until release.
func (l *Limiter[K]) acquire(key K) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: l.now()}
		l.buckets[key] = b
	}
	b.refs++
	return b
}

func (l *Limiter[K]) release(b *bucket) {
	l.mu.Lock()
	b.refs--
	l.mu.Unlock()
}

// refill must be called with b.mu held.
func (l *Limiter[K]) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < l.period {
		return
	}
	periods := int64(elapsed / l.period)
	added := periods * int64(l.capacity)
	if added > int64(l.capacity-b.tokens) {
		b.tokens = l.capacity
	} else {
		b.tokens += int(added)
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(periods) * l.period)
}
