package store

import (
	"encoding/json"
	"slices"
	"sync"
)

// MemoryStore provides an in-memory KV implementation for tests and
// ephemeral servers. It copies on both Load and Save so callers never share
// buffers with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	closed      bool
	collections map[string]map[string]json.RawMessage
	saves       map[string]int
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
		saves:       make(map[string]int),
	}
}

// Load returns a copy of a collection.
func (s *MemoryStore) Load(collection string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return cloneRaw(s.collections[collection]), nil
}

// Save replaces a collection with a copy of mapping.
func (s *MemoryStore) Save(collection string, mapping map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.collections[collection] = cloneRaw(mapping)
	s.saves[collection]++
	return nil
}

// Saves returns how many times a collection has been saved.
func (s *MemoryStore) Saves(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[collection]
}

// Close marks the store closed; later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}
