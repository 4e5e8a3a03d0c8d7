package balance

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stratum/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	balances map[string]*EntityBalance
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{balances: make(map[string]*EntityBalance)}
}

func (s *InMemoryStore) Upsert(_ context.Context, record EntityBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.balances[record.EntityID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Currency == "" {
		record.Currency = "T"
	}
	copied := record
	s.balances[record.EntityID] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, entityID string) (*EntityBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.balances[entityID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *InMemoryStore) Adjust(_ context.Context, entityID string, delta decimal.Decimal) (*EntityBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.balances[entityID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	record.Balance = record.Balance.Add(delta)
	record.UpdatedAt = time.Now().UTC()
	copied := *record
	return &copied, nil
}
