package countdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

// mockGateway records every remote call in order.
type mockGateway struct {
	ResolveError  error
	PostError     error
	DeleteError   error
	RoleError     error
	MentionResult string
	GuildID       string

	Calls  []string
	Posted []postedMessage
	posted chan struct{}
	nextID int
	mu     sync.Mutex
}

type postedMessage struct {
	ChannelID string
	Content   string
	ID        string
}

func newMockGateway() *mockGateway {
	return &mockGateway{GuildID: "guild-1", posted: make(chan struct{}, 16)}
}

func (m *mockGateway) ResolveChannel(_ context.Context, channelID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "resolve:"+channelID)
	if m.ResolveError != nil {
		return "", m.ResolveError
	}
	return m.GuildID, nil
}

func (m *mockGateway) PostMessage(_ context.Context, channelID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "post:"+channelID)
	if m.PostError != nil {
		return "", m.PostError
	}
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.Posted = append(m.Posted, postedMessage{ChannelID: channelID, Content: content, ID: id})
	select {
	case m.posted <- struct{}{}:
	default:
	}
	return id, nil
}

func (m *mockGateway) DeleteMessage(_ context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "delete:"+channelID+":"+messageID)
	return m.DeleteError
}

func (m *mockGateway) RoleMention(_ context.Context, guildID, roleID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "role:"+guildID+":"+roleID)
	if m.RoleError != nil {
		return "", m.RoleError
	}
	return m.MentionResult, nil
}

func (m *mockGateway) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *mockGateway) messages() []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedMessage(nil), m.Posted...)
}

// mockSettings is an in-memory SettingsStore.
type mockSettings struct {
	UpdateError error
	s           config.Settings
	updates     int
	mu          sync.Mutex
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
	return m.UpdateError
}

var errUnavailable = errors.New("service unavailable")
