package tokenstore

import (
	"context"
	"sync"
)

// MemoryScope keeps the record for the lifetime of the process.
type MemoryScope struct {
	mu  sync.RWMutex
	rec Record
}

var _ Scope = (*MemoryScope)(nil)

// NewMemoryScope creates an empty MemoryScope.
func NewMemoryScope() *MemoryScope {
	return &MemoryScope{}
}

func (m *MemoryScope) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec.Empty() {
		return Record{}, ErrNotFound
	}
	return m.rec, nil
}

func (m *MemoryScope) Store(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.rec = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryScope) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.rec = Record{}
	m.mu.Unlock()
	return nil
}
