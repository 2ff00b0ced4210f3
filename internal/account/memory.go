package account

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/joebot/clipbot/internal/bus"
)

// MemoryStore keeps accounts in process memory. Balances are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[bus.Identity]*Account
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[bus.Identity]*Account),
		now:      time.Now,
	}
}

func (s *MemoryStore) FindOrCreate(_ context.Context, id bus.Identity) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getLocked(id)
	cp := *acc
	return &cp, nil
}

func (s *MemoryStore) AddCredits(_ context.Context, id bus.Identity, n int) (int, error) {
	if n < 0 {
		return 0, errors.Errorf("add credits: negative amount %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getLocked(id)
	acc.Balance += n
	acc.UpdatedAt = s.now()
	return acc.Balance, nil
}

func (s *MemoryStore) ConsumeOneCredit(_ context.Context, id bus.Identity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.Balance <= 0 {
		return 0, ErrInsufficientBalance
	}
	acc.Balance--
	acc.UpdatedAt = s.now()
	return acc.Balance, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) getLocked(id bus.Identity) *Account {
	acc, ok := s.accounts[id]
	if !ok {
		now := s.now()
		acc = &Account{Identity: id, CreatedAt: now, UpdatedAt: now}
		s.accounts[id] = acc
	}
	return acc
}
