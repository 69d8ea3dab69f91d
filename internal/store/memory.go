package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps entries in process memory
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

// Get returns a copy of the entry under key
func (m *MemoryBackend) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return Entry{}, nil
	}
	return Entry{Data: append([]byte(nil), entry.Data...), Version: entry.Version}, nil
}

// Put stores data if the version matches
func (m *MemoryBackend) Put(_ context.Context, key string, data []byte, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.entries[key].Version
	if expected != AnyVersion && expected != current {
		return 0, ErrVersionConflict
	}

	next := current + 1
	m.entries[key] = Entry{Data: append([]byte(nil), data...), Version: next}
	return next, nil
}

// Delete removes key
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
