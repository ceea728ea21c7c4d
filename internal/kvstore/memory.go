package kvstore

import (
	"context"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	quota   int64
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory creates a Memory store holding at most quota bytes of keys and
// values. A non-positive quota is unlimited.
func NewMemory(quota int64) *Memory {
	return &Memory{quota: quota, entries: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var used int64
	for k, v := range m.entries {
		if k != key {
			used += entrySize(k, v)
		}
	}
	if err := checkQuota(m.quota, used, entrySize(key, value)); err != nil {
		return err
	}
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}
