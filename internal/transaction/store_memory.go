package transaction

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"stratum/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]*Transaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{transactions: make(map[string]*Transaction)}
}

func (s *InMemoryStore) Insert(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *tx
	s.transactions[tx.ID] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, requesterID, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists || tx.RequesterID != requesterID {
		return nil, sentinel.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; !exists {
		return sentinel.ErrNotFound
	}
	copied := *tx
	s.transactions[tx.ID] = &copied
	return nil
}

func (s *InMemoryStore) List(_ context.Context, requesterID string, filter Filter) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for _, tx := range s.transactions {
		if tx.RequesterID != requesterID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.FromDate != nil && tx.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && tx.CreatedAt.After(*filter.ToDate) {
			continue
		}
		out = append(out, *tx)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context, requesterID string) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{CompletedAmount: decimal.Zero}
	for _, tx := range s.transactions {
		if tx.RequesterID != requesterID {
			continue
		}
		stats.Total++
		switch tx.Status {
		case StatusPending:
			stats.Pending++
		case StatusCompleted:
			stats.Completed++
			stats.CompletedAmount = stats.CompletedAmount.Add(tx.Amount)
		case StatusFailed:
			stats.Failed++
		case StatusApprovalRequired:
			stats.ApprovalRequired++
		}
	}
	return stats, nil
}
