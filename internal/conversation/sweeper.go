package conversation

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often idle conversations are checked.
const DefaultSweepInterval = 10 * time.Minute

// SweepFunc is an extra cleanup step run on every sweep tick; it returns
// how many items it removed.
type SweepFunc func() int

// Sweeper periodically evicts idle conversations. With a zero TTL it never
// runs, matching a process that keeps every conversation for its lifetime.
type Sweeper struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	extra    []SweepFunc
}

// NewSweeper creates a sweeper for m.
func NewSweeper(m *Manager, ttl, interval time.Duration, extra ...SweepFunc) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{manager: m, ttl: ttl, interval: interval, extra: extra}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 {
		slog.Debug("Conversation sweeper disabled")
		return
	}
	slog.Info("Conversation sweeper started", "ttl", s.ttl, "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Conversation sweeper stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick performs one sweep.
func (s *Sweeper) Tick() {
	removed := s.manager.EvictIdle(s.ttl)
	for _, fn := range s.extra {
		removed += fn()
	}
	if removed > 0 {
		slog.Info("Sweeper: evicted idle entries", "removed", removed, "live", s.manager.Len())
	}
}
