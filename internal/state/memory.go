package state

import (
	"context"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

// MemoryStore provides an in-memory implementation of Store.
// Used for file-only deployments, where it only deduplicates events.
type MemoryStore struct {
	processed map[string]time.Time
	settings  config.Settings
	mu        sync.RWMutex
	hasDoc    bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processed: make(map[string]time.Time),
	}
}

// Load returns the settings document.
func (s *MemoryStore) Load(_ context.Context) (config.Settings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone(), s.hasDoc, nil
}

// Save stores the settings document.
func (s *MemoryStore) Save(_ context.Context, cfg config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = cfg.Clone()
	s.hasDoc = true
	return nil
}

// WasProcessed checks if an event was already processed.
func (s *MemoryStore) WasProcessed(_ context.Context, eventKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, exists := s.processed[eventKey]
	return exists && time.Now().Before(expiry)
}

// MarkProcessed marks an event as processed.
func (s *MemoryStore) MarkProcessed(_ context.Context, eventKey string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[eventKey] = time.Now().Add(ttl)
	return nil
}

// Cleanup removes expired event keys.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiry := range s.processed {
		if now.After(expiry) {
			delete(s.processed, key)
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (*MemoryStore) Close() error {
	return nil
}
