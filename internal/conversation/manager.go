package conversation

import (
	"sync"
	"time"

	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/history"
)

// Manager owns one Conversation per identity and serializes access to each.
// Identities never contend with each other: the manager's own lock is only
// held for map bookkeeping.
type Manager struct {
	ringSize int
	now      func() time.Time

	mu    sync.Mutex
	cache map[bus.Identity]*entry
}

type entry struct {
	mu   sync.Mutex // held while a caller works on conv
	refs int        // guarded by Manager.mu; >0 blocks eviction
	conv *Conversation
}

// NewManager creates a conversation manager. ringSize is the back-navigation
// history length per conversation.
func NewManager(ringSize int) *Manager {
	if ringSize <= 0 {
		ringSize = history.DefaultCapacity
	}
	return &Manager{
		ringSize: ringSize,
		now:      time.Now,
		cache:    make(map[bus.Identity]*entry),
	}
}

// Acquire returns the identity's conversation, creating it on first sight,
// and locks it. The caller must call release exactly once when done.
func (m *Manager) Acquire(id bus.Identity) (conv *Conversation, release func()) {
	m.mu.Lock()
	e, ok := m.cache[id]
	if !ok {
		e = &entry{conv: newConversation(id, m.ringSize, m.now())}
		m.cache[id] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	e.conv.LastSeen = m.now()

	var once sync.Once
	return e.conv, func() {
		once.Do(func() {
			e.mu.Unlock()
			m.mu.Lock()
			e.refs--
			m.mu.Unlock()
		})
	}
}

// Peek reports the identity's current state without creating a conversation.
func (m *Manager) Peek(id bus.Identity) (State, Format, bool) {
	m.mu.Lock()
	e, ok := m.cache[id]
	if ok {
		e.refs++
	}
	m.mu.Unlock()
	if !ok {
		return Initial, FormatNone, false
	}

	e.mu.Lock()
	state, format := e.conv.State, e.conv.Format
	e.mu.Unlock()

	m.mu.Lock()
	e.refs--
	m.mu.Unlock()
	return state, format, true
}

// EvictIdle drops conversations not seen for longer than ttl and not in use.
// It returns the number removed. A non-positive ttl evicts nothing.
func (m *Manager) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.cache {
		if e.refs > 0 {
			continue
		}
		// refs == 0 under m.mu means nobody holds or waits for e.mu.
		if e.conv.LastSeen.Before(cutoff) {
			delete(m.cache, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}
