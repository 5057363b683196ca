// Package kv implements the alternate storage backend: relational tables
// emulated on a flat key/value substrate. Each logical table is one JSON
// array under a namespaced key, with a persisted per-table id counter.
package kv

import (
	"context"
	"sync"
)

// Substrate is the raw persistent key/value medium under the table store.
// Get reports ok=false for a missing key.
type Substrate interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemorySubstrate keeps keys in process memory. It is used when no
// persistent medium is configured and in tests.
type MemorySubstrate struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySubstrate returns an empty in-memory substrate.
func NewMemorySubstrate() *MemorySubstrate {
	return &MemorySubstrate{data: make(map[string][]byte)}
}

// Get implements Substrate.
func (m *MemorySubstrate) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Substrate.
func (m *MemorySubstrate) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Substrate.
func (m *MemorySubstrate) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys.
func (m *MemorySubstrate) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
