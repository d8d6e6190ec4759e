package localstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/and161185/noteloom/internal/errs"
)

// Memory is a Store kept in process memory. Useful for tests and ephemeral sessions.
type Memory struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{data: map[string]json.RawMessage{}} }

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append(json.RawMessage(nil), v...), nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append(json.RawMessage(nil), value...)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}
