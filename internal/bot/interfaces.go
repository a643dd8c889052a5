// Package bot implements the chat-facing behavior: admin settings commands,
// prefixed text commands, and the Discord/Minecraft chat bridge.
package bot

import (
	"context"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/minecraft"
)

// SettingsStore reads and updates the persisted settings.
type SettingsStore interface {
	Settings() config.Settings
	Update(ctx context.Context, fn func(*config.Settings)) error
}

// Poster posts messages to Discord channels.
type Poster interface {
	PostMessage(ctx context.Context, channelID, content string) (string, error)
}

// Console runs commands on the Minecraft server.
type Console interface {
	WhitelistAdd(ctx context.Context, name string) (string, error)
	Say(ctx context.Context, text string) error
}

// StatusSource reports the Minecraft server status.
type StatusSource interface {
	Status(ctx context.Context) (*minecraft.Status, error)
}

// Countdown answers on-demand countdown queries.
type Countdown interface {
	Query(ctx context.Context, channelID, triggerID string) error
}
