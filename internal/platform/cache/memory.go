package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	tags      []string
	expiresAt time.Time
}

// MemoryStore provides an in-memory implementation useful for testing and
// single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	byTag   map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryStore constructs an empty memory-backed cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		byTag:   make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Get implements the Store interface.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.removeLocked(key)
		return nil, ErrMiss
	}

	return append([]byte(nil), entry.value...), nil
}

// Set implements the Store interface.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)

	entry := memoryEntry{
		value:     append([]byte(nil), value...),
		tags:      append([]string(nil), tags...),
		expiresAt: s.now().Add(ttl),
	}
	s.entries[key] = entry

	for _, tag := range tags {
		keys, ok := s.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}

	return nil
}

// InvalidateKey implements the Store interface.
func (s *MemoryStore) InvalidateKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)
	return nil
}

// InvalidateTag implements the Store interface.
func (s *MemoryStore) InvalidateTag(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.byTag[tag] {
		s.removeLocked(key)
	}
	return nil
}

func (s *MemoryStore) removeLocked(key string) {
	entry, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	for _, tag := range entry.tags {
		if keys, ok := s.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.byTag, tag)
			}
		}
	}
}
