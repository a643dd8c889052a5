package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Persister loads and saves the settings document.
type Persister interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Manager owns the live settings. Readers get copies; writers go through Update.
type Manager struct {
	store    Persister
	logger   *slog.Logger
	defaults Settings
	current  Settings
	mu       sync.RWMutex
	updateMu sync.Mutex // serializes read-modify-write cycles
}

// NewManager creates a settings manager. defaults fill fields the persisted document leaves unset
// and are never written back.
func NewManager(store Persister, defaults Settings, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		defaults: defaults.Clone(),
		logger:   logger,
	}
}

// Load replaces the in-memory settings with the persisted document.
func (m *Manager) Load(ctx context.Context) error {
	s, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	m.mu.Lock()
	m.current = s.Clone()
	m.mu.Unlock()

	m.logger.Info("settings loaded",
		"chat_channel_id", s.ChatChannelID,
		"github_repo", s.GitHubRepo,
		"countdown_configured", s.CountdownConfigured())
	return nil
}

// Settings returns the effective settings: persisted values over defaults.
func (m *Manager) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Overlay(m.defaults)
}

// Persisted returns a copy of the persisted document without defaults.
func (m *Manager) Persisted() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Update applies fn to a copy of the persisted settings, saves it and publishes it.
// The in-memory settings are updated even when saving fails.
func (m *Manager) Update(ctx context.Context, fn func(*Settings)) error {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	next := m.Persisted()
	fn(&next)

	m.mu.Lock()
	m.current = next.Clone()
	m.mu.Unlock()

	if err := m.store.Save(ctx, next); err != nil {
		m.logger.Warn("failed to persist settings", "error", err)
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
