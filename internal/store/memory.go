package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibrida/pricing-engine/internal/model"
)

// MemoryStore implements Store in process memory. Used for testing and for
// running without a database (state is lost on restart).
//
// Snapshots are held as marshaled JSON so Load always returns an isolated
// copy and exercises the same round-trip the durable stores do.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		return nil, ErrNotFound
	}
	var snap model.Snapshot
	if err := json.Unmarshal(s.data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MemoryStore) Save(_ context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
