package registry

import (
	"context"
	"sync"
	"time"

	"stratum/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]EntityLayerInfo
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{mappings: make(map[string]EntityLayerInfo)}
}

func (s *InMemoryStore) Upsert(_ context.Context, info EntityLayerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	s.mappings[info.EntityID] = info
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, entityID string) (*EntityLayerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, exists := s.mappings[entityID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return &info, nil
}
