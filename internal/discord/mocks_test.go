package discord

import (
	"context"
	"fmt"
	"sync"
)

// recordingHandler collects inbound messages.
type recordingHandler struct {
	got []InboundMessage
	mu  sync.Mutex
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg InboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, msg)
}

// mockAdmin records admin calls and returns programmable results.
type mockAdmin struct {
	Err   error
	Calls []string
	mu    sync.Mutex
}

func (m *mockAdmin) record(format string, args ...any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := fmt.Sprintf(format, args...)
	m.Calls = append(m.Calls, call)
	if m.Err != nil {
		return "", m.Err
	}
	return "ok " + call, nil
}

func (m *mockAdmin) SetServerChannel(_ context.Context, channelID string) (string, error) {
	return m.record("set_server_channel %s", channelID)
}

func (m *mockAdmin) SetGitHubUpdateChannel(_ context.Context, repo, channelID string, interval int) (string, error) {
	return m.record("set_githubupdate_channel %s %s %d", repo, channelID, interval)
}

func (m *mockAdmin) DisableGitHub(context.Context) (string, error) {
	return m.record("disable_github")
}

func (m *mockAdmin) ShowConfig(context.Context) (string, error) {
	return m.record("show_config")
}

func (m *mockAdmin) ChangePrefix(_ context.Context, prefix string) (string, error) {
	return m.record("change_prefix %s", prefix)
}

func (m *mockAdmin) SetCleanup(_ context.Context, retention, interval *int) (string, error) {
	return m.record("set_cleanup %s %s", intString(retention), intString(interval))
}

func (m *mockAdmin) SetCountdown(_ context.Context, iso, channelID, zone string) (string, error) {
	return m.record("set_countdown %s %s %s", iso, channelID, zone)
}

func (m *mockAdmin) DisableCountdown(context.Context) (string, error) {
	return m.record("disable_countdown")
}

func (m *mockAdmin) SetCountdownRole(_ context.Context, roleID string) (string, error) {
	return m.record("set_countdown_role %s", roleID)
}

func (m *mockAdmin) DisableCountdownRole(context.Context) (string, error) {
	return m.record("disable_countdown_role")
}

func intString(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
