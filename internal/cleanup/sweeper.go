// Package cleanup periodically removes old messages from the bridge chat channel.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
)

const (
	scanLimit  = 200                    // newest messages inspected per sweep
	pageSize   = 100                    // Discord history page limit
	deletePace = 300 * time.Millisecond // minimum spacing between deletes
)

// Message is the part of a chat message the sweeper needs.
type Message struct {
	ID        string
	CreatedAt time.Time
}

// Gateway lists and deletes channel messages.
type Gateway interface {
	// MessagesBefore returns up to limit messages older than beforeID (newest first).
	// An empty beforeID starts from the newest message.
	MessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// SettingsSource provides the current settings.
type SettingsSource interface {
	Settings() config.Settings
}

// Config configures a Sweeper.
type Config struct {
	Gateway  Gateway
	Settings SettingsSource
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
	// Limiter paces deletes; defaults to one per 300ms.
	Limiter *rate.Limiter
}

// Sweeper deletes bridge messages older than the configured retention.
type Sweeper struct {
	gateway  Gateway
	settings SettingsSource
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	limiter  *rate.Limiter
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a sweeper.
func New(cfg Config) *Sweeper {
	s := &Sweeper{
		gateway:  cfg.Gateway,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		limiter:  cfg.Limiter,
		stopCh:   make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Every(deletePace), 1)
	}
	return s
}

// Start begins periodic sweeping.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Go(func() {
		s.run(ctx)
	})
}

// Stop stops sweeping and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Warn("message cleanup failed", "error", err, "deleted", n)
		} else if n > 0 {
			s.logger.Info("message cleanup finished", "deleted", n)
		}

		timer := time.NewTimer(s.settings.Settings().CleanupInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Sweep scans the newest messages of the chat channel once and deletes the expired ones.
// Individual delete failures are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cfg := s.settings.Settings()
	retention := cfg.CleanupRetention()
	if cfg.ChatChannelID == "" || retention <= 0 {
		return 0, nil
	}

	channelID := cfg.ChatChannelID
	cutoff := s.now().Add(-retention)
	deleted := 0
	scanned := 0
	before := ""

	for scanned < scanLimit {
		limit := min(pageSize, scanLimit-scanned)
		msgs, err := s.gateway.MessagesBefore(ctx, channelID, before, limit)
		if err != nil {
			return deleted, fmt.Errorf("list messages in %s: %w", channelID, err)
		}

		for _, m := range msgs {
			scanned++
			if !m.CreatedAt.Before(cutoff) {
				continue
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return deleted, err
			}
			if err := s.gateway.DeleteMessage(ctx, channelID, m.ID); err != nil {
				s.logger.Debug("failed to delete expired message",
					"channel_id", channelID,
					"message_id", m.ID,
					"error", err)
				continue
			}
			deleted++
		}

		if len(msgs) < limit {
			break
		}
		before = msgs[len(msgs)-1].ID
	}

	s.metrics.Deleted(deleted)
	return deleted, nil
}
