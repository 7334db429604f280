package domains

import (
	"context"
	"sync"
)

// Memory is an in-memory, thread-safe Registry. It does not survive process
// restarts and is intended for tests and development.
type Memory struct {
	mu       sync.RWMutex
	mappings map[string]string
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{mappings: make(map[string]string)}
}

// Get implements Registry.
func (m *Memory) Get(_ context.Context, domain string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.mappings[domain]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

// Set implements Registry. The read-check-write sequence holds the write
// lock for its whole duration so two first-writers cannot both register.
func (m *Memory) Set(_ context.Context, domain, containerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.mappings[domain]; ok {
		if existing == containerID {
			return nil
		}
		return ErrConflict
	}
	m.mappings[domain] = containerID
	return nil
}

// List implements Registry.
func (m *Memory) List(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.mappings))
	for k, v := range m.mappings {
		out[k] = v
	}
	return out, nil
}
