package harbour

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory registry implementation, used in tests and for
// running without a database.
type MemStore struct {
	mu       sync.RWMutex
	harbours []Harbour
}

// NewMemStore creates an empty in-memory registry.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Add inserts h into the registry, assigning an id when h.ID is empty, and
// returns the stored entry.
func (s *MemStore) Add(h Harbour) Harbour {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	s.harbours = append(s.harbours, h)
	return h
}

// FindByName returns all entries matching name case-insensitively.
func (s *MemStore) FindByName(_ context.Context, name string) ([]Harbour, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Harbour
	for _, h := range s.harbours {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Names returns every registered harbour name.
func (s *MemStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.harbours))
	for i, h := range s.harbours {
		out[i] = h.Name
	}
	return out, nil
}
