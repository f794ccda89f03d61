package state

import (
	"context"
	"sync"
)

// MemStore is an in-process Store for tests and ephemeral deployments.
type MemStore struct {
	mu sync.Mutex
	s  State
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{s: State{}}
}

func (m *MemStore) Read(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Clone(), nil
}

func (m *MemStore) Write(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s.Clone()
	return nil
}
