package transaction

import (
	"sort"
	"sync"
)

// lockManager serializes mutating operations per entity. Locks are always
// acquired in lexicographic id order so that two transfers touching the same
// entity pair in opposite directions cannot deadlock.
type lockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockManager() *lockManager {
	return &lockManager{locks: make(map[string]*sync.Mutex)}
}

func (m *lockManager) lockFor(entityID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[entityID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[entityID] = l
	}
	return l
}

// acquire locks the given entities and returns a release function. Duplicate
// and empty ids are dropped before ordering.
func (m *lockManager) acquire(entityIDs ...string) (release func()) {
	seen := make(map[string]struct{}, len(entityIDs))
	ids := make([]string, 0, len(entityIDs))
	for _, id := range entityIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		l := m.lockFor(id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
