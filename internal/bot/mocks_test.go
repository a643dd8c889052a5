package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/minecraft"
)

// mockSettings is an in-memory SettingsStore.
type mockSettings struct {
	SaveError error
	s         config.Settings
	updates   int
	mu        sync.Mutex
}

func (m *mockSettings) Settings() config.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Clone()
}

func (m *mockSettings) Update(_ context.Context, fn func(*config.Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.s)
	m.updates++
	return m.SaveError
}

type postedMessage struct {
	channelID string
	text      string
}

type mockPoster struct {
	PostError error
	posted    []postedMessage
	mu        sync.Mutex
}

func (m *mockPoster) PostMessage(_ context.Context, channelID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PostError != nil {
		return "", m.PostError
	}
	m.posted = append(m.posted, postedMessage{channelID, text})
	return fmt.Sprintf("msg-%d", len(m.posted)), nil
}

func (m *mockPoster) messages() []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedMessage(nil), m.posted...)
}

type mockConsole struct {
	Error     error
	whitelist []string
	said      []string
	mu        sync.Mutex
}

func (m *mockConsole) WhitelistAdd(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !minecraft.ValidPlayerName(name) {
		return "", fmt.Errorf("%w: %q", minecraft.ErrInvalidPlayerName, name)
	}
	if m.Error != nil {
		return "", m.Error
	}
	m.whitelist = append(m.whitelist, name)
	return "Added " + name + " to the whitelist", nil
}

func (m *mockConsole) Say(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Error != nil {
		return m.Error
	}
	m.said = append(m.said, text)
	return nil
}

type mockStatus struct {
	Error  error
	Result *minecraft.Status
}

func (m *mockStatus) Status(context.Context) (*minecraft.Status, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Result, nil
}

type countdownQuery struct {
	channelID string
	triggerID string
}

type mockCountdown struct {
	queries []countdownQuery
	mu      sync.Mutex
}

func (m *mockCountdown) Query(_ context.Context, channelID, triggerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, countdownQuery{channelID, triggerID})
	return nil
}
