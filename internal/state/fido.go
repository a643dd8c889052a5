package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/fido"
	"github.com/codeGROOVE-dev/fido/pkg/store/cloudrun"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

// settingsTTL keeps the settings document effectively forever; every save refreshes it.
const settingsTTL = 10 * 365 * 24 * time.Hour

// FidoStore implements Store using fido with the CloudRun backend
// (Cloud Datastore on Cloud Run, local files elsewhere).
//
// The Datastore database named by the constructor must exist before use.
// Event deduplication is in-memory only.
type FidoStore struct {
	settings *fido.TieredCache[string, config.Settings]

	events   map[string]time.Time
	eventsMu sync.RWMutex
}

// FidoStoreOption configures a FidoStore.
type FidoStoreOption func(*fidoStoreOptions)

type fidoStoreOptions struct {
	settingsStore fido.Store[string, config.Settings]
}

// WithSettingsStore sets a custom backing store for the settings document.
func WithSettingsStore(s fido.Store[string, config.Settings]) FidoStoreOption {
	return func(o *fidoStoreOptions) { o.settingsStore = s }
}

// NewFidoStore creates a fido-backed store using the named Datastore database.
func NewFidoStore(ctx context.Context, database string, opts ...FidoStoreOption) (*FidoStore, error) {
	var o fidoStoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	backing := o.settingsStore
	if backing == nil {
		var err error
		backing, err = cloudrun.New[string, config.Settings](ctx, database)
		if err != nil {
			return nil, fmt.Errorf("create settings store: %w", err)
		}
	}

	settings, err := fido.NewTiered(backing, fido.TTL(settingsTTL))
	if err != nil {
		return nil, fmt.Errorf("create settings cache: %w", err)
	}

	return &FidoStore{
		settings: settings,
		events:   make(map[string]time.Time),
	}, nil
}

// Load returns the settings document.
func (s *FidoStore) Load(ctx context.Context) (config.Settings, bool, error) {
	cfg, found, err := s.settings.Get(ctx, settingsKey)
	if err != nil {
		return config.Settings{}, false, fmt.Errorf("get settings: %w", err)
	}
	return cfg, found, nil
}

// Save stores the settings document.
func (s *FidoStore) Save(ctx context.Context, cfg config.Settings) error {
	if err := s.settings.Set(ctx, settingsKey, cfg); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}

// WasProcessed checks if an event was already processed.
func (s *FidoStore) WasProcessed(_ context.Context, eventKey string) bool {
	s.eventsMu.RLock()
	expiry, found := s.events[eventKey]
	s.eventsMu.RUnlock()

	return found && time.Now().Before(expiry)
}

// MarkProcessed marks an event as processed.
func (s *FidoStore) MarkProcessed(_ context.Context, eventKey string, ttl time.Duration) error {
	s.eventsMu.Lock()
	s.events[eventKey] = time.Now().Add(ttl)
	s.eventsMu.Unlock()
	return nil
}

// Cleanup removes expired event keys.
func (s *FidoStore) Cleanup(_ context.Context) error {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	now := time.Now()
	removed := 0
	for key, expiry := range s.events {
		if now.After(expiry) {
			delete(s.events, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("removed expired event keys", "count", removed)
	}
	return nil
}

// Close releases resources.
func (s *FidoStore) Close() error {
	if err := s.settings.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	return nil
}
