package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in a process-local map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Fingerprint]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Fingerprint]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, fp Fingerprint) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[fp]
	if !ok {
		return nil, ErrCacheMiss
	}
	e.Body = append([]byte(nil), e.Body...)
	return &e, nil
}

func (s *MemoryStore) Save(_ context.Context, fp Fingerprint, entry *Entry) error {
	e := *entry
	e.Body = append([]byte(nil), entry.Body...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fp] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, fp Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fp)
	return nil
}

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[Fingerprint]Entry)
	return nil
}

func (s *MemoryStore) Backend() string { return BackendMemory }

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
