// Package kv is the key-value capability the slot store persists through.
// Backends return internaltypes.ErrNotFound for an absent key and wrap every
// other failure in internaltypes.ErrStoreUnavailable.
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/post-scheduler/internal/internaltypes"
)

type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
}

func unavailable(op, namespace, key string, err error) error {
	return fmt.Errorf("%w: %s %s/%s: %w", internaltypes.ErrStoreUnavailable, op, namespace, key, err)
}

// Memory is an in-process Store for tests and dry runs. Nothing survives
// a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace+":"+key]
	if !ok {
		return nil, internaltypes.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[namespace+":"+key] = v
	return nil
}
