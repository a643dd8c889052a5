// Package state provides remote persistence for bot settings and event deduplication.
package state

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

// Store is a remote settings backend that also remembers processed events.
type Store interface {
	// Settings document, see config.Remote.
	Load(ctx context.Context) (config.Settings, bool, error)
	Save(ctx context.Context, s config.Settings) error

	// Event deduplication (GitHub webhook deliveries, stream events).
	WasProcessed(ctx context.Context, eventKey string) bool
	MarkProcessed(ctx context.Context, eventKey string, ttl time.Duration) error

	// Lifecycle
	Cleanup(ctx context.Context) error
	Close() error
}

// settingsKey is the single document key; mirrors the one-row config table.
const settingsKey = "config"

// EventTTL bounds how long an event key is remembered.
const EventTTL = 2 * time.Hour
