package service

import (
	"context"
	"sync"
	"time"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/repository"
)

type memoryRateLimitStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryRateLimitStore crea un store en memoria para un único proceso.
func NewMemoryRateLimitStore() repository.RateLimitStore {
	return &memoryRateLimitStore{
		hits: make(map[string][]time.Time),
	}
}

func memoryKey(identifier, action string) string {
	return action + "|" + identifier
}

func (s *memoryRateLimitStore) Window(_ context.Context, identifier, action string, since time.Time) (repository.RateLimitWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var w repository.RateLimitWindow
	for _, ts := range s.hits[memoryKey(identifier, action)] {
		if ts.Before(since) {
			continue
		}
		if w.Count == 0 || ts.Before(w.Oldest) {
			w.Oldest = ts
		}
		w.Count++
	}
	return w, nil
}

func (s *memoryRateLimitStore) Record(_ context.Context, record domain.RateLimitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(record.Identifier, record.Action)
	s.hits[key] = append(s.hits[key], record.CreatedAt)
	return nil
}

func (s *memoryRateLimitStore) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, entries := range s.hits {
		kept := entries[:0]
		for _, ts := range entries {
			if ts.Before(before) {
				removed++
				continue
			}
			kept = append(kept, ts)
		}
		if len(kept) == 0 {
			delete(s.hits, key)
			continue
		}
		s.hits[key] = kept
	}
	return removed, nil
}
