// Package history keeps a short, time-ordered record of the screens a user
// was shown, enough to support one level of "back" navigation.
package history

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries a Ring retains.
const DefaultCapacity = 5

// Entry is one recorded item.
type Entry[T any] struct {
	At    time.Time
	Seq   uint64
	Value T
}

// Ring is a fixed-capacity buffer ordered by record time. Entries recorded
// within the same clock tick keep their insertion order through a sequence
// counter, so none is dropped as a duplicate.
type Ring[T any] struct {
	mu       sync.Mutex
	entries  []Entry[T] // oldest first
	capacity int
	seq      uint64
	now      func() time.Time
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{
		entries:  make([]Entry[T], 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Record appends v stamped with the current time, evicting the oldest entry
// when the ring is full.
func (r *Ring[T]) Record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := Entry[T]{At: r.now(), Seq: r.seq, Value: v}

	// Keep ordering by (At, Seq) even if the clock steps backwards.
	i := len(r.entries)
	for i > 0 && less(e, r.entries[i-1]) {
		i--
	}
	r.entries = append(r.entries, Entry[T]{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e

	if len(r.entries) > r.capacity {
		r.entries = append(r.entries[:0], r.entries[1:]...)
	}
}

// LastBeforeMostRecent returns the entry recorded just before the newest one.
// With a single entry it returns that entry; with none it reports false.
func (r *Ring[T]) LastBeforeMostRecent() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch n := len(r.entries); n {
	case 0:
		var zero T
		return zero, false
	case 1:
		return r.entries[0].Value, true
	default:
		return r.entries[n-2].Value, true
	}
}

// Snapshot returns the recorded values, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Value
	}
	return out
}

// Len returns the number of entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func less[T any](a, b Entry[T]) bool {
	if a.At.Equal(b.At) {
		return a.Seq < b.Seq
	}
	return a.At.Before(b.At)
}
