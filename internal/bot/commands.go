package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/mcbridge/internal/discord"
	"github.com/codeGROOVE-dev/mcbridge/internal/format"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
	"github.com/codeGROOVE-dev/mcbridge/internal/minecraft"
)

const (
	commandTimeout         = 30 * time.Second
	maxConcurrentCommands  = 10
	directionToMinecraft   = "discord_to_minecraft"
	directionFromMinecraft = "minecraft_to_discord"
)

// Text command replies.
const (
	ReplyRCONDisabled  = "Minecraft RCON is not configured."
	ReplyQueryDisabled = "Minecraft Query is not configured."
	ReplyUnreachable   = "Server not reachable"
	ReplyOffline       = "Server is offline"
	ReplyInvalidPlayer = "Invalid Minecraft player name (3-16 letters, digits or underscores)."
)

// DispatcherConfig configures a Dispatcher. Console and Status are nil when
// the corresponding integration is not configured.
type DispatcherConfig struct {
	Settings  SettingsStore
	Poster    Poster
	Console   Console
	Status    StatusSource
	Countdown Countdown
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Dispatcher handles chat messages: prefixed text commands and the chat bridge.
type Dispatcher struct {
	settings  SettingsStore
	poster    Poster
	console   Console
	status    StatusSource
	countdown Countdown
	logger    *slog.Logger
	metrics   *metrics.Metrics
	sem       chan struct{}
}

// NewDispatcher creates a message dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		settings:  cfg.Settings,
		poster:    cfg.Poster,
		console:   cfg.Console,
		status:    cfg.Status,
		countdown: cfg.Countdown,
		logger:    logger,
		metrics:   cfg.Metrics,
		sem:       make(chan struct{}, maxConcurrentCommands),
	}
}

// HandleMessage processes one inbound chat message.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg discord.InboundMessage) {
	if msg.FromBot {
		return
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-d.sem }()

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	s := d.settings.Settings()
	if name, arg, ok := parseCommand(msg.Content, s.Prefix()); ok {
		if d.runCommand(ctx, msg, name, arg, s.ChatChannelID) {
			return
		}
	}
	d.bridge(ctx, msg, s.ChatChannelID)
}

// parseCommand splits "<prefix><name> <arg>". Names are case-insensitive.
func parseCommand(content, prefix string) (name, arg string, ok bool) {
	rest, found := strings.CutPrefix(content, prefix)
	if !found {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimSpace(rest), " ")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

// runCommand executes a known command and reports whether name was one.
func (d *Dispatcher) runCommand(ctx context.Context, msg discord.InboundMessage, name, arg, bridgeChannel string) bool {
	// Server commands only answer in the bridge channel once one is set.
	inBridge := bridgeChannel == "" || msg.ChannelID == bridgeChannel

	switch name {
	case "whitelistadd", "whitelist":
		if inBridge {
			d.whitelist(ctx, msg, arg)
		}
	case "ping", "status":
		if inBridge {
			d.ping(ctx, msg)
		}
	case "howlong", "countdown", "wielange":
		if d.countdown == nil {
			return true
		}
		if err := d.countdown.Query(ctx, msg.ChannelID, msg.MessageID); err != nil {
			d.logger.Warn("countdown query failed", "channel_id", msg.ChannelID, "error", err)
		}
	default:
		return false
	}
	return true
}

func (d *Dispatcher) whitelist(ctx context.Context, msg discord.InboundMessage, name string) {
	if d.console == nil {
		d.reply(ctx, msg.ChannelID, ReplyRCONDisabled)
		return
	}
	if _, err := d.console.WhitelistAdd(ctx, name); err != nil {
		if errors.Is(err, minecraft.ErrInvalidPlayerName) {
			d.reply(ctx, msg.ChannelID, ReplyInvalidPlayer)
			return
		}
		d.logger.Warn("whitelist add failed", "player", name, "error", err)
		d.reply(ctx, msg.ChannelID, ReplyUnreachable)
		return
	}
	d.logger.Info("player whitelisted", "player", name, "requested_by", msg.AuthorID)
	d.reply(ctx, msg.ChannelID, "Player "+name+" was added to the whitelist")
}

func (d *Dispatcher) ping(ctx context.Context, msg discord.InboundMessage) {
	if d.status == nil {
		d.reply(ctx, msg.ChannelID, ReplyQueryDisabled)
		return
	}
	st, err := d.status.Status(ctx)
	if err != nil {
		d.logger.Info("server status unavailable", "error", err)
		d.reply(ctx, msg.ChannelID, ReplyOffline)
		return
	}
	d.reply(ctx, msg.ChannelID, format.PlayerList(st.NumPlayers, st.MaxPlayers, st.Players))
}

func (d *Dispatcher) reply(ctx context.Context, channelID, content string) {
	if _, err := d.poster.PostMessage(ctx, channelID, content); err != nil {
		d.logger.Warn("failed to send reply", "channel_id", channelID, "error", err)
	}
}

// bridge forwards a bridge channel message into Minecraft chat.
func (d *Dispatcher) bridge(ctx context.Context, msg discord.InboundMessage, bridgeChannel string) {
	if d.console == nil || bridgeChannel == "" || msg.ChannelID != bridgeChannel {
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		return
	}
	if err := d.console.Say(ctx, format.DiscordToMinecraft(msg.AuthorName, msg.Content)); err != nil {
		d.logger.Warn("failed to bridge message to Minecraft", "message_id", msg.MessageID, "error", err)
		return
	}
	d.metrics.Bridged(directionToMinecraft)
}
