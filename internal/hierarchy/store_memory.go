package hierarchy

import (
	"context"
	"sort"
	"sync"
	"time"

	"stratum/pkg/platform/sentinel"

	dErrors "stratum/pkg/domain-errors"
)

// InMemoryStore keeps the node arena in a mutex-guarded map. It is the
// default store for tests and single-process deployments.
type InMemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nodes: make(map[string]*Node)}
}

func (s *InMemoryStore) InsertNode(_ context.Context, node Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; exists {
		return nil
	}

	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	if node.Currency == "" {
		node.Currency = DefaultCurrency
	}
	copied := node
	s.nodes[node.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetNode(_ context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, exists := s.nodes[id]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	copied := *node
	return &copied, nil
}

func (s *InMemoryStore) ApplyDeltas(_ context.Context, deltas []Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching any balance.
	for _, d := range deltas {
		if _, exists := s.nodes[d.NodeID]; !exists {
			return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeInvariantViolation,
				"delta targets unknown node "+d.NodeID)
		}
	}

	now := time.Now().UTC()
	for _, d := range deltas {
		node := s.nodes[d.NodeID]
		node.Balance = node.Balance.Add(d.Amount)
		node.UpdatedAt = now
	}
	return nil
}

func (s *InMemoryStore) NodesByLevel(_ context.Context, level Level) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Node
	for _, node := range s.nodes {
		if node.Level == level {
			out = append(out, *node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
