package config

import "time"

// Defaults applied when neither the environment nor the persisted settings provide a value.
const (
	DefaultCommandPrefix          = "mc!"
	DefaultPollIntervalSeconds    = 120
	DefaultRetentionHours         = 48
	DefaultCleanupIntervalMinutes = 60
	DefaultTimezone               = "Europe/Berlin"
	MaxCommandPrefixLength        = 5
)

// Settings is the flat, persisted bot configuration.
// Absent fields mean "not configured".
type Settings struct {
	ChatChannelID             string `yaml:"chat_channel_id,omitempty" json:"chat_channel_id,omitempty"`
	GitHubRepo                string `yaml:"github_repo,omitempty" json:"github_repo,omitempty"`
	GitHubUpdatesChannelID    string `yaml:"github_updates_channel_id,omitempty" json:"github_updates_channel_id,omitempty"`
	GitHubPollIntervalSeconds int    `yaml:"github_poll_interval_seconds,omitempty" json:"github_poll_interval_seconds,omitempty"`
	CommandPrefix             string `yaml:"command_prefix,omitempty" json:"command_prefix,omitempty"`
	CleanupRetentionHours     *int   `yaml:"message_cleanup_retention_hours,omitempty" json:"message_cleanup_retention_hours,omitempty"`
	CleanupIntervalMinutes    int    `yaml:"message_cleanup_interval_minutes,omitempty" json:"message_cleanup_interval_minutes,omitempty"`

	CountdownChannelID         string `yaml:"countdown_channel_id,omitempty" json:"countdown_channel_id,omitempty"`
	CountdownTargetISO         string `yaml:"countdown_target_iso,omitempty" json:"countdown_target_iso,omitempty"`
	CountdownTimezone          string `yaml:"countdown_timezone,omitempty" json:"countdown_timezone,omitempty"`
	CountdownRoleID            string `yaml:"countdown_role_id,omitempty" json:"countdown_role_id,omitempty"`
	CountdownLastMessageID     string `yaml:"countdown_last_message_id,omitempty" json:"countdown_last_message_id,omitempty"`
	CountdownLastAutoMessageID string `yaml:"countdown_last_auto_message_id,omitempty" json:"countdown_last_auto_message_id,omitempty"`
	CountdownLastTriggerID     string `yaml:"countdown_last_trigger_id,omitempty" json:"countdown_last_trigger_id,omitempty"`
	CountdownLastCheckpoint    string `yaml:"countdown_last_checkpoint,omitempty" json:"countdown_last_checkpoint,omitempty"`

	// GitHubDisabled stops the repository and channel defaults from applying after disable_github.
	GitHubDisabled bool `yaml:"github_disabled,omitempty" json:"github_disabled,omitempty"`
}

// IsZero reports whether no field is set.
func (s Settings) IsZero() bool {
	return s == Settings{}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	c := s
	if s.CleanupRetentionHours != nil {
		v := *s.CleanupRetentionHours
		c.CleanupRetentionHours = &v
	}
	return c
}

// Overlay returns s with every unset field taken from base.
func (s Settings) Overlay(base Settings) Settings {
	out := s.Clone()
	str := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	str(&out.ChatChannelID, base.ChatChannelID)
	if !out.GitHubDisabled {
		str(&out.GitHubRepo, base.GitHubRepo)
		str(&out.GitHubUpdatesChannelID, base.GitHubUpdatesChannelID)
	}
	str(&out.CommandPrefix, base.CommandPrefix)
	str(&out.CountdownChannelID, base.CountdownChannelID)
	str(&out.CountdownTargetISO, base.CountdownTargetISO)
	str(&out.CountdownTimezone, base.CountdownTimezone)
	str(&out.CountdownRoleID, base.CountdownRoleID)
	if out.GitHubPollIntervalSeconds == 0 {
		out.GitHubPollIntervalSeconds = base.GitHubPollIntervalSeconds
	}
	if out.CleanupIntervalMinutes == 0 {
		out.CleanupIntervalMinutes = base.CleanupIntervalMinutes
	}
	if out.CleanupRetentionHours == nil && base.CleanupRetentionHours != nil {
		v := *base.CleanupRetentionHours
		out.CleanupRetentionHours = &v
	}
	return out
}

// Prefix returns the text command prefix.
func (s Settings) Prefix() string {
	if s.CommandPrefix == "" {
		return DefaultCommandPrefix
	}
	return s.CommandPrefix
}

// PollInterval returns the GitHub commit polling interval.
func (s Settings) PollInterval() time.Duration {
	if s.GitHubPollIntervalSeconds <= 0 {
		return DefaultPollIntervalSeconds * time.Second
	}
	return time.Duration(s.GitHubPollIntervalSeconds) * time.Second
}

// CleanupRetention returns how long bridge messages are kept. Zero disables cleanup.
func (s Settings) CleanupRetention() time.Duration {
	if s.CleanupRetentionHours == nil {
		return DefaultRetentionHours * time.Hour
	}
	if *s.CleanupRetentionHours <= 0 {
		return 0
	}
	return time.Duration(*s.CleanupRetentionHours) * time.Hour
}

// CleanupInterval returns the pause between cleanup sweeps.
func (s Settings) CleanupInterval() time.Duration {
	if s.CleanupIntervalMinutes <= 0 {
		return DefaultCleanupIntervalMinutes * time.Minute
	}
	return time.Duration(s.CleanupIntervalMinutes) * time.Minute
}

// Timezone returns the countdown time zone name.
func (s Settings) Timezone() string {
	if s.CountdownTimezone == "" {
		return DefaultTimezone
	}
	return s.CountdownTimezone
}

// CountdownConfigured reports whether both a target and a channel are set.
func (s Settings) CountdownConfigured() bool {
	return s.CountdownTargetISO != "" && s.CountdownChannelID != ""
}
