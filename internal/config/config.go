// Package config manages server configuration and persisted bot settings.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds server configuration from environment variables.
type ServerConfig struct {
	DiscordToken   string `env:"DISCORD_TOKEN"`
	DiscordGuildID string `env:"DISCORD_GUILD_ID"`
	Port           string `env:"PORT" envDefault:"8080"`
	// Delete guild slash commands on exit. Leave off for rolling deploys.
	RemoveCommandsOnExit bool `env:"DISCORD_REMOVE_COMMANDS_ON_EXIT"`

	// Settings persistence.
	ConfigPath    string `env:"CONFIG_PATH" envDefault:"config.yaml"`
	ConfigBackend string `env:"CONFIG_BACKEND" envDefault:"file"` // "file", "datastore" or "redis"
	DatastoreName string `env:"DATASTORE_DATABASE" envDefault:"mcbridge-config"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"mcbridge"`

	// Minecraft server.
	ServerIP               string `env:"SERVER_IP"`
	RCONPort               int    `env:"RCON_PORT"`
	RCONPassword           string `env:"RCON_PASSWORD"`
	QueryPort              int    `env:"QUERY_PORT"`
	MinecraftWebhookSecret string `env:"MINECRAFT_WEBHOOK_SECRET"`

	// GitHub relay.
	GitHubWebhookSecret  string `env:"GITHUB_WEBHOOK_SECRET"`
	GitHubToken          string `env:"GITHUB_TOKEN"`
	GitHubAppID          string `env:"GITHUB_APP_ID"`
	GitHubPrivateKey     string `env:"GITHUB_PRIVATE_KEY"`
	GitHubEventStreamURL string `env:"GITHUB_EVENT_STREAM_URL"`

	// Defaults for the persisted settings. Values saved through admin
	// commands take precedence.
	ChatChannelID             string `env:"CHAT_CHANNEL_ID"`
	GitHubRepo                string `env:"GITHUB_REPO"`
	GitHubUpdatesChannelID    string `env:"GITHUB_UPDATES_CHANNEL_ID"`
	GitHubPollIntervalSeconds int    `env:"GITHUB_POLL_INTERVAL_SECONDS" envDefault:"120"`
	CleanupRetentionHours     int    `env:"MESSAGE_CLEANUP_RETENTION_HOURS" envDefault:"48"`
	CleanupIntervalMinutes    int    `env:"MESSAGE_CLEANUP_INTERVAL_MINUTES" envDefault:"60"`
	Timezone                  string `env:"TIMEZONE" envDefault:"Europe/Berlin"`
	CommandPrefix             string `env:"COMMAND_PREFIX" envDefault:"mc!"`
}

// ParseEnv reads a ServerConfig from the process environment.
func ParseEnv() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports fatal misconfiguration.
func (c ServerConfig) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN environment variable is required")
	}
	switch c.ConfigBackend {
	case "", "file", "datastore", "redis":
	default:
		return fmt.Errorf("unknown CONFIG_BACKEND %q", c.ConfigBackend)
	}
	return nil
}

// Features reports which optional integrations are configured.
type Features struct {
	RCON   bool `yaml:"rcon" json:"rcon"`
	Query  bool `yaml:"query" json:"query"`
	Bridge bool `yaml:"bridge" json:"bridge"`
	GitHub bool `yaml:"github" json:"github"`
}

// Features derives feature flags from the server config and current settings.
func (c ServerConfig) Features(s Settings) Features {
	rcon := c.ServerIP != "" && c.RCONPort > 0 && c.RCONPassword != ""
	return Features{
		RCON:   rcon,
		Query:  c.ServerIP != "" && c.QueryPort > 0,
		Bridge: rcon && s.ChatChannelID != "",
		GitHub: s.GitHubRepo != "" && s.GitHubUpdatesChannelID != "",
	}
}

// RCONAddr returns host:port of the RCON listener.
func (c ServerConfig) RCONAddr() string {
	return c.ServerIP + ":" + strconv.Itoa(c.RCONPort)
}

// QueryAddr returns host:port of the Query listener.
func (c ServerConfig) QueryAddr() string {
	return c.ServerIP + ":" + strconv.Itoa(c.QueryPort)
}

// PushSourceActive reports whether GitHub events arrive without polling.
func (c ServerConfig) PushSourceActive() bool {
	return c.GitHubWebhookSecret != "" || c.GitHubEventStreamURL != ""
}

// Defaults returns the environment-provided settings baseline.
func (c ServerConfig) Defaults() Settings {
	retention := c.CleanupRetentionHours
	return Settings{
		ChatChannelID:             c.ChatChannelID,
		GitHubRepo:                c.GitHubRepo,
		GitHubUpdatesChannelID:    c.GitHubUpdatesChannelID,
		GitHubPollIntervalSeconds: c.GitHubPollIntervalSeconds,
		CommandPrefix:             c.CommandPrefix,
		CleanupRetentionHours:     &retention,
		CleanupIntervalMinutes:    c.CleanupIntervalMinutes,
		CountdownTimezone:         c.Timezone,
	}
}

// HTTP server timeouts.
const (
	ServerReadTimeout  = 15 * time.Second
	ServerWriteTimeout = 15 * time.Second
	ServerIdleTimeout  = 120 * time.Second
)
