package assets

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore keeps token records in-memory. It is safe for concurrent use
// and primarily intended for development or single-instance deployments.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	entries map[string]memoryTokenEntry
}

type memoryTokenEntry struct {
	record  TokenRecord
	evictAt time.Time
}

// NewMemoryTokenStore constructs an in-memory store implementation.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{entries: make(map[string]memoryTokenEntry)}
}

// Save records the token details with the provided TTL.
func (s *MemoryTokenStore) Save(_ context.Context, token string, record TokenRecord, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[token] = memoryTokenEntry{record: record, evictAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Get retrieves the record for the provided token. Entries past their TTL are
// treated as absent even before PurgeExpired removes them.
func (s *MemoryTokenStore) Get(_ context.Context, token string) (TokenRecord, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.evictAt) {
		return TokenRecord{}, false, nil
	}
	return entry.record, true, nil
}

// Delete removes the token from the store.
func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
	return nil
}

// PurgeExpired removes entries whose TTL elapsed before now.
func (s *MemoryTokenStore) PurgeExpired(now time.Time) error {
	s.mu.Lock()
	for token, entry := range s.entries {
		if now.After(entry.evictAt) {
			delete(s.entries, token)
		}
	}
	s.mu.Unlock()
	return nil
}

// Len reports the number of live entries, counting those awaiting eviction.
func (s *MemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always reports success for the in-memory token store.
func (s *MemoryTokenStore) Ping(context.Context) error {
	return nil
}
