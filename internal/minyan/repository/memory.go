package repository

import (
	"context"
	"sync"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
)

// MemoryRepo keeps the encoded document in memory. Every Load decodes a
// fresh copy, so callers never share state with the repository.
type MemoryRepo struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Load(ctx context.Context) (*minyan.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Decode(m.data)
}

func (m *MemoryRepo) Save(ctx context.Context, s *minyan.State) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	return nil
}

// Bytes returns the last saved document exactly as it would be written to disk.
func (m *MemoryRepo) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}
