// Package cache provides the session-marker store. Markers are best-effort
// pointers from an account to its current access token; the JWT stays valid
// by signature and expiry regardless of marker state.
package cache

import (
	"context"
	"sync"
	"time"
)

// SessionStore is the key-value collaborator consumed by the auth service.
// A Redis-backed implementation can be swapped in behind this interface.
type SessionStore interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

type sessionEntry struct {
	value  string
	expiry time.Time
}

// MemorySessionStore is an in-process SessionStore with per-key expiry.
type MemorySessionStore struct {
	entries map[string]*sessionEntry
	mu      sync.RWMutex
	stopCh  chan struct{}
}

// NewMemorySessionStore creates a memory-backed store and starts its
// cleanup goroutine. Call Close to stop it.
func NewMemorySessionStore() *MemorySessionStore {
	store := &MemorySessionStore{
		entries: make(map[string]*sessionEntry),
		stopCh:  make(chan struct{}),
	}

	go store.cleanupExpiredEntries()

	return store
}

func (s *MemorySessionStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &sessionEntry{
		value:  value,
		expiry: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return "", false, nil
	}

	if time.Now().After(entry.expiry) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}

	return entry.value, true, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// cleanupExpiredEntries periodically removes expired markers
func (s *MemorySessionStore) cleanupExpiredEntries() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiry) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the cleanup goroutine
func (s *MemorySessionStore) Close() {
	close(s.stopCh)
}
