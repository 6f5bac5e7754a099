package kvstore

import (
	"bytes"
	"context"
	"sync"
)

// Memory is a map-backed Store. It is durable only for the life of the
// process and exists for tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := m.GetOptional(ctx, key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, notFound(key)
	}
	return value, nil
}

func (m *Memory) GetOptional(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return nonNil(bytes.Clone(value)), nil
}

func (m *Memory) Has(_ context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *Memory) Set(_ context.Context, key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = nonNil(bytes.Clone(value))
	return nil
}

// Delete removes a key. Only tests and manual cache-busting use it.
func (m *Memory) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
