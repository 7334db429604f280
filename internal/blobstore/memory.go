package blobstore

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

type memContainer struct {
	content []byte
	version int64
}

// Memory is an in-memory, thread-safe Store used in tests and development.
type Memory struct {
	mu         sync.RWMutex
	containers map[string]*memContainer
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{containers: make(map[string]*memContainer)}
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.containers[id] = &memContainer{content: append([]byte(nil), content...), version: 1}
	return id, nil
}

// Read implements Store.
func (m *Memory) Read(_ context.Context, id string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.containers[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), c.content...), strconv.FormatInt(c.version, 10), nil
}

// Update implements Store.
func (m *Memory) Update(_ context.Context, id string, content []byte, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return ErrNotFound
	}
	if version != strconv.FormatInt(c.version, 10) {
		return ErrConcurrentModification
	}
	c.content = append([]byte(nil), content...)
	c.version++
	return nil
}

// UpdateUnchecked overwrites a container without a version check. This is
// the legacy last-write-wins behavior of the original design; it exists so
// the lost-update failure mode stays constructible in tests.
func (m *Memory) UpdateUnchecked(_ context.Context, id string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[id]
	if !ok {
		return ErrNotFound
	}
	c.content = append([]byte(nil), content...)
	c.version++
	return nil
}

// Len returns the number of containers held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.containers)
}
