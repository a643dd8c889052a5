// Package countdown posts milestone announcements counting down to a configured instant.
package countdown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
)

const (
	checkInterval   = time.Minute      // tick period
	expiredInterval = 10 * time.Minute // re-check period once the target has passed
)

// State is the outcome of one scheduler evaluation.
type State string

// Scheduler states.
const (
	StateIdle        State = "idle"        // no target or channel configured
	StateInvalid     State = "invalid"     // target or zone cannot be parsed
	StateExpired     State = "expired"     // target reached
	StateArmed       State = "armed"       // waiting for the next milestone
	StateUnreachable State = "unreachable" // announcement due but channel cannot be resolved
	StateAnnounced   State = "announced"   // posted a milestone this tick
)

// Gateway is the messaging surface the scheduler posts through.
type Gateway interface {
	ResolveChannel(ctx context.Context, channelID string) (guildID string, err error)
	PostMessage(ctx context.Context, channelID, content string) (messageID string, err error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	RoleMention(ctx context.Context, guildID, roleID string) (string, error)
}

// SettingsStore provides the countdown configuration and records posted message ids.
type SettingsStore interface {
	Settings() config.Settings
	Update(ctx context.Context, fn func(*config.Settings)) error
}

// Config configures a Scheduler.
type Config struct {
	Gateway  Gateway
	Settings SettingsStore
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time // defaults to time.Now
}

// Scheduler evaluates the countdown on a fixed tick and answers on-demand queries.
type Scheduler struct {
	gateway  Gateway
	settings SettingsStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	wake     chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.Mutex // serializes ticks and queries that touch message ids
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		gateway:  cfg.Gateway,
		settings: cfg.Settings,
		logger:   logger,
		metrics:  cfg.Metrics,
		now:      now,
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Go(func() {
		s.run(ctx)
	})
	s.logger.Info("countdown scheduler started", "interval", checkInterval)
}

// Stop stops the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("countdown scheduler stopped")
}

// Wake triggers an evaluation now, e.g. after the countdown was reconfigured.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}

		state := s.Tick(ctx)
		next := checkInterval
		if state == StateExpired {
			next = expiredInterval
		}
		timer.Reset(next)
	}
}

// Tick performs one evaluation and posts at most one announcement.
func (s *Scheduler) Tick(ctx context.Context) State {
	state := s.tick(ctx)
	s.metrics.Tick(string(state))
	return state
}

func (s *Scheduler) tick(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.settings.Settings()
	if !cfg.CountdownConfigured() {
		s.logger.Debug("countdown not configured")
		return StateIdle
	}

	target, err := ParseTarget(cfg.CountdownTargetISO, cfg.Timezone())
	if err != nil {
		s.logger.Warn("countdown target unusable",
			"target", cfg.CountdownTargetISO,
			"timezone", cfg.Timezone(),
			"error", err)
		return StateInvalid
	}

	now := s.now()
	if !target.After(now) {
		s.logger.Debug("countdown target reached", "target", target)
		return StateExpired
	}

	ann, due := Evaluate(now, target)
	if !due {
		return StateArmed
	}

	key := ann.Key(target)
	if key == cfg.CountdownLastCheckpoint {
		s.logger.Debug("milestone already announced", "key", key)
		return StateArmed
	}

	guildID, err := s.gateway.ResolveChannel(ctx, cfg.CountdownChannelID)
	if err != nil {
		s.logger.Warn("countdown channel unreachable",
			"channel_id", cfg.CountdownChannelID,
			"error", err)
		return StateUnreachable
	}

	content := ann.Text
	if cfg.CountdownRoleID != "" {
		content = s.mention(ctx, guildID, cfg.CountdownRoleID) + " " + content
	}

	if !s.replace(ctx, cfg.CountdownChannelID, cfg.CountdownLastAutoMessageID, content, func(st *config.Settings, id string) {
		st.CountdownLastAutoMessageID = id
		st.CountdownLastCheckpoint = key
	}) {
		return StateArmed
	}

	s.metrics.Announcement(string(ann.Kind))
	s.logger.Info("countdown announcement posted",
		"channel_id", cfg.CountdownChannelID,
		"kind", ann.Kind,
		"milestone", ann.Name,
		"remaining", target.Sub(now).String())
	return StateAnnounced
}

// mention resolves the role's mention string, falling back to the raw role syntax.
func (s *Scheduler) mention(ctx context.Context, guildID, roleID string) string {
	m, err := s.gateway.RoleMention(ctx, guildID, roleID)
	if err != nil || m == "" {
		s.logger.Debug("role lookup failed, using raw mention", "role_id", roleID, "error", err)
		return "<@&" + roleID + ">"
	}
	return m
}

// replace deletes the previous message (failures ignored), posts content and records the new id.
// It reports whether the post succeeded.
func (s *Scheduler) replace(ctx context.Context, channelID, previousID, content string, record func(*config.Settings, string)) bool {
	if previousID != "" {
		if err := s.gateway.DeleteMessage(ctx, channelID, previousID); err != nil {
			s.logger.Debug("previous message not deleted",
				"channel_id", channelID,
				"message_id", previousID,
				"error", err)
		}
	}

	id, err := s.gateway.PostMessage(ctx, channelID, content)
	if err != nil {
		s.logger.Warn("failed to post countdown message",
			"channel_id", channelID,
			"error", err)
		return false
	}

	if err := s.settings.Update(ctx, func(st *config.Settings) { record(st, id) }); err != nil {
		s.logger.Warn("failed to record countdown message id",
			"message_id", id,
			"error", err)
	}
	return true
}
