package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/countdown"
	"github.com/codeGROOVE-dev/mcbridge/internal/format"
	"github.com/codeGROOVE-dev/mcbridge/internal/github"
)

// Validation errors shown to the admin.
var (
	ErrInvalidRepo     = errors.New("invalid repository format, expected owner/repo")
	ErrEmptyPrefix     = errors.New("prefix must not be empty")
	ErrPrefixTooLong   = fmt.Errorf("prefix is too long (max. %d characters)", config.MaxCommandPrefixLength)
	ErrInvalidTarget   = errors.New("invalid ISO date, example: 2025-12-31T17:00")
	ErrInvalidTimezone = errors.New("unknown time zone, example: Europe/Berlin")
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// ReplyNoChanges answers a cleanup update without any usable value.
const ReplyNoChanges = "No changes provided."

// AdminConfig configures an Admin.
type AdminConfig struct {
	Settings SettingsStore
	Logger   *slog.Logger
	// Features reports which integrations are active for the given settings.
	Features func(config.Settings) config.Features
	// OnCountdownChange is called after countdown settings changed.
	OnCountdownChange func()
	// OnRepoChange is called after the GitHub repository changed.
	OnRepoChange func()
}

// Admin applies administrative settings changes.
type Admin struct {
	settings          SettingsStore
	logger            *slog.Logger
	features          func(config.Settings) config.Features
	onCountdownChange func()
	onRepoChange      func()
}

// NewAdmin creates an admin service.
func NewAdmin(cfg AdminConfig) *Admin {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{
		settings:          cfg.Settings,
		logger:            logger,
		features:          cfg.Features,
		onCountdownChange: cfg.OnCountdownChange,
		onRepoChange:      cfg.OnRepoChange,
	}
}

func channelMention(id string) string {
	return "<#" + id + ">"
}

// update applies fn and reports persistence failures. The change is live either way.
func (a *Admin) update(ctx context.Context, op string, fn func(*config.Settings)) error {
	if err := a.settings.Update(ctx, fn); err != nil {
		a.logger.Warn("admin change not persisted", "command", op, "error", err)
		return fmt.Errorf("setting applied but could not be saved: %w", err)
	}
	a.logger.Info("settings changed", "command", op)
	return nil
}

func (a *Admin) countdownChanged() {
	if a.onCountdownChange != nil {
		a.onCountdownChange()
	}
}

// SetServerChannel sets the Minecraft bridge channel.
func (a *Admin) SetServerChannel(ctx context.Context, channelID string) (string, error) {
	if err := a.update(ctx, "set_server_channel", func(s *config.Settings) {
		s.ChatChannelID = channelID
	}); err != nil {
		return "", err
	}
	return "Bridge channel set to " + channelMention(channelID) + ".", nil
}

// SetGitHubUpdateChannel configures the repository whose commits are relayed.
func (a *Admin) SetGitHubUpdateChannel(ctx context.Context, repo, channelID string, pollIntervalSeconds int) (string, error) {
	repo = strings.TrimSpace(repo)
	if _, _, err := github.SplitRepo(repo); err != nil {
		return "", ErrInvalidRepo
	}
	if pollIntervalSeconds < 0 {
		return "", ErrInvalidInterval
	}

	err := a.update(ctx, "set_githubupdate_channel", func(s *config.Settings) {
		s.GitHubRepo = repo
		s.GitHubUpdatesChannelID = channelID
		s.GitHubDisabled = false
		if pollIntervalSeconds > 0 {
			s.GitHubPollIntervalSeconds = pollIntervalSeconds
		}
	})
	if a.onRepoChange != nil {
		a.onRepoChange()
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GitHub updates set: %s → %s.", repo, channelMention(channelID)), nil
}

// DisableGitHub stops relaying GitHub activity.
func (a *Admin) DisableGitHub(ctx context.Context) (string, error) {
	if err := a.update(ctx, "disable_github", func(s *config.Settings) {
		s.GitHubRepo = ""
		s.GitHubUpdatesChannelID = ""
		s.GitHubDisabled = true
	}); err != nil {
		return "", err
	}
	if a.onRepoChange != nil {
		a.onRepoChange()
	}
	return "GitHub updates disabled.", nil
}

// configView is the show_config rendering of the effective settings.
type configView struct {
	BridgeChannelID        string          `yaml:"bridge_channel_id"`
	CommandPrefix          string          `yaml:"command_prefix"`
	GitHubRepo             string          `yaml:"github_repo"`
	GitHubUpdatesChannelID string          `yaml:"github_updates_channel_id"`
	GitHubPollInterval     string          `yaml:"github_poll_interval"`
	CleanupRetention       string          `yaml:"message_cleanup_retention"`
	CleanupInterval        string          `yaml:"message_cleanup_interval"`
	CountdownChannelID     string          `yaml:"countdown_channel_id"`
	CountdownTarget        string          `yaml:"countdown_target_iso"`
	CountdownTimezone      string          `yaml:"countdown_timezone"`
	CountdownRoleID        string          `yaml:"countdown_role_id"`
	Features               config.Features `yaml:"features"`
}

// ShowConfig renders the effective settings.
func (a *Admin) ShowConfig(context.Context) (string, error) {
	s := a.settings.Settings()
	view := configView{
		BridgeChannelID:        s.ChatChannelID,
		CommandPrefix:          s.Prefix(),
		GitHubRepo:             s.GitHubRepo,
		GitHubUpdatesChannelID: s.GitHubUpdatesChannelID,
		GitHubPollInterval:     s.PollInterval().String(),
		CleanupRetention:       s.CleanupRetention().String(),
		CleanupInterval:        s.CleanupInterval().String(),
		CountdownChannelID:     s.CountdownChannelID,
		CountdownTarget:        s.CountdownTargetISO,
		CountdownTimezone:      s.Timezone(),
		CountdownRoleID:        s.CountdownRoleID,
	}
	if a.features != nil {
		view.Features = a.features(s)
	}

	out, err := yaml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return format.CodeBlock("yaml", string(out)), nil
}

// ChangePrefix sets the text command prefix.
func (a *Admin) ChangePrefix(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrEmptyPrefix
	}
	if utf8.RuneCountInString(prefix) > config.MaxCommandPrefixLength {
		return "", ErrPrefixTooLong
	}
	if err := a.update(ctx, "change_prefix", func(s *config.Settings) {
		s.CommandPrefix = prefix
	}); err != nil {
		return "", err
	}
	return "Prefix changed to `" + prefix + "`.", nil
}

// SetCleanup updates message retention and sweep interval. Out-of-range values are ignored.
func (a *Admin) SetCleanup(ctx context.Context, retentionHours, intervalMinutes *int) (string, error) {
	var changed []string
	var retention, interval int
	if retentionHours != nil && *retentionHours >= 0 {
		retention = *retentionHours
		changed = append(changed, fmt.Sprintf("retention=%dh", retention))
	}
	if intervalMinutes != nil && *intervalMinutes > 0 {
		interval = *intervalMinutes
		changed = append(changed, fmt.Sprintf("interval=%dm", interval))
	}
	if len(changed) == 0 {
		return ReplyNoChanges, nil
	}

	if err := a.update(ctx, "set_cleanup", func(s *config.Settings) {
		if retentionHours != nil && *retentionHours >= 0 {
			s.CleanupRetentionHours = &retention
		}
		if interval > 0 {
			s.CleanupIntervalMinutes = interval
		}
	}); err != nil {
		return "", err
	}
	return "Cleanup updated: " + strings.Join(changed, ", "), nil
}

// SetCountdown sets the countdown target and announcement channel.
// The target is validated before anything is stored.
func (a *Admin) SetCountdown(ctx context.Context, targetISO, channelID, timezone string) (string, error) {
	targetISO = strings.TrimSpace(targetISO)
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		tz = a.settings.Settings().Timezone()
	}

	if _, err := countdown.ParseTarget(targetISO, tz); err != nil {
		if errors.Is(err, countdown.ErrInvalidTimezone) {
			return "", ErrInvalidTimezone
		}
		return "", ErrInvalidTarget
	}

	err := a.update(ctx, "set_countdown", func(s *config.Settings) {
		s.CountdownChannelID = channelID
		s.CountdownTargetISO = targetISO
		s.CountdownTimezone = tz
		s.CountdownLastCheckpoint = ""
	})
	a.countdownChanged()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Countdown set: %s (%s) → %s", targetISO, tz, channelMention(channelID)), nil
}

// DisableCountdown removes the countdown. Disabling twice is harmless.
func (a *Admin) DisableCountdown(ctx context.Context) (string, error) {
	err := a.update(ctx, "disable_countdown", func(s *config.Settings) {
		s.CountdownChannelID = ""
		s.CountdownTargetISO = ""
		s.CountdownTimezone = ""
	})
	a.countdownChanged()
	if err != nil {
		return "", err
	}
	return "Countdown disabled.", nil
}

// SetCountdownRole sets the role mentioned in scheduled announcements.
func (a *Admin) SetCountdownRole(ctx context.Context, roleID string) (string, error) {
	if err := a.update(ctx, "set_countdown_role", func(s *config.Settings) {
		s.CountdownRoleID = roleID
	}); err != nil {
		return "", err
	}
	return "Countdown role set: <@&" + roleID + ">", nil
}

// DisableCountdownRole stops mentioning a role in scheduled announcements.
func (a *Admin) DisableCountdownRole(ctx context.Context) (string, error) {
	if err := a.update(ctx, "disable_countdown_role", func(s *config.Settings) {
		s.CountdownRoleID = ""
	}); err != nil {
		return "", err
	}
	return "Countdown role removed.", nil
}
