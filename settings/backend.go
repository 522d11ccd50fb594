package settings

import (
	"context"
	"sync"
)

// Backend persists setting values. Values must be JSON-compatible.
type Backend interface {
	LoadAll(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, name string, value any) error
	Delete(ctx context.Context, name string) error
}

// MemoryBackend is a process-local Backend for tests and headless sessions.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: map[string]any{}}
}

// NewMemoryBackendWith seeds the backend, as if values had been persisted
// by an earlier session.
func NewMemoryBackendWith(values map[string]any) *MemoryBackend {
	b := NewMemoryBackend()
	for name, value := range values {
		b.values[name] = value
	}
	return b
}

func (b *MemoryBackend) LoadAll(_ context.Context) (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.values))
	for name, value := range b.values {
		out[name] = value
	}
	return out, nil
}

func (b *MemoryBackend) Save(_ context.Context, name string, value any) error {
	b.mu.Lock()
	b.values[name] = value
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	delete(b.values, name)
	b.mu.Unlock()
	return nil
}
