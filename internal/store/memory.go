package store

import (
	"context"
	"sync"
)

// Memory keeps collections in process memory.
type Memory struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]Blob)}
}

// Load returns a copy of the named collection.
func (m *Memory) Load(_ context.Context, name string) (Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.blobs[name]
	return Blob{Data: append([]byte(nil), b.Data...), Version: b.Version}, nil
}

// Commit checks every version before applying any write.
func (m *Memory) Commit(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		if m.blobs[w.Name].Version != w.Version {
			return ErrConflict
		}
	}
	for _, w := range writes {
		m.blobs[w.Name] = Blob{Data: append([]byte(nil), w.Data...), Version: w.Version + 1}
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
