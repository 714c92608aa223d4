package results

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	results map[string]Result
	prefs   map[string]bool
}

// NewInMemoryStore keeps results for the lifetime of the process.
func NewInMemoryStore() Store {
	return &memoryStore{results: map[string]Result{}, prefs: map[string]bool{}}
}

func (m *memoryStore) Save(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.ID] = r
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return Result{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) ListByUser(_ context.Context, userID string, limit int) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Result
	for _, r := range m.results {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) SetTimerPreference(_ context.Context, userID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[userID] = enabled
	return nil
}

func (m *memoryStore) TimerPreference(_ context.Context, userID string) (*bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prefs[userID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}
