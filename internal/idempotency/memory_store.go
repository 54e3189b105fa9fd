package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryKeyStore is a process-local KeyStore for single-process deployments.
type MemoryKeyStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (s *MemoryKeyStore) live(key string) (Record, bool) {
	rec, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.records, key)
		return Record{}, false
	}
	return rec, true
}

func (s *MemoryKeyStore) Reserve(ctx context.Context, key string, rec Record, lease time.Duration) (bool, *Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.live(key); ok {
		return false, &existing, nil
	}
	rec.ExpiresAt = s.now().Add(lease)
	s.records[key] = rec
	return true, nil, nil
}

func (s *MemoryKeyStore) Complete(ctx context.Context, key, token string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.live(key); ok && existing.Token != token {
		return ErrLeaseLost
	}
	rec.ExpiresAt = s.now().Add(ttl)
	s.records[key] = rec
	return nil
}

func (s *MemoryKeyStore) Release(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok && existing.Token == token && existing.State == StateInProgress {
		delete(s.records, key)
	}
	return nil
}

// Cleanup drops expired records and returns how many were removed.
func (s *MemoryKeyStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}
