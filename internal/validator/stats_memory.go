package validator

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type attempt struct {
	at     time.Time
	amount decimal.Decimal
}

// InMemoryStats implements ActivityStats with a per-entity sliding window of
// attempts and per-day completed totals.
type InMemoryStats struct {
	mu        sync.Mutex
	attempts  map[string][]attempt
	completed map[string]map[string]decimal.Decimal // entity -> day -> total
}

func NewInMemoryStats() *InMemoryStats {
	return &InMemoryStats{
		attempts:  make(map[string][]attempt),
		completed: make(map[string]map[string]decimal.Decimal),
	}
}

func (s *InMemoryStats) RecordAttempt(_ context.Context, entityID string, amount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[entityID] = append(s.attempts[entityID], attempt{at: at, amount: amount})
	return nil
}

func (s *InMemoryStats) RecordCompleted(_ context.Context, entityID string, amount decimal.Decimal, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := at.UTC().Format("2006-01-02")
	if s.completed[entityID] == nil {
		s.completed[entityID] = make(map[string]decimal.Decimal)
	}
	s.completed[entityID][day] = s.completed[entityID][day].Add(amount)
	return nil
}

func (s *InMemoryStats) HourlyWindow(_ context.Context, entityID string, now time.Time) (WindowStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-time.Hour)
	kept := s.attempts[entityID][:0]
	stats := WindowStats{Total: decimal.Zero}
	for _, a := range s.attempts[entityID] {
		if a.at.After(cutoff) {
			kept = append(kept, a)
			stats.Count++
			stats.Total = stats.Total.Add(a.amount)
		}
	}
	s.attempts[entityID] = kept
	return stats, nil
}

func (s *InMemoryStats) CompletedTotalOn(_ context.Context, entityID string, now time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := now.UTC().Format("2006-01-02")
	total := s.completed[entityID][day]
	return total, nil
}
