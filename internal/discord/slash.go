package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// AdminService applies administrative settings changes and returns the user-facing reply.
// Validation failures are returned as errors whose message is shown to the caller.
type AdminService interface {
	SetServerChannel(ctx context.Context, channelID string) (string, error)
	SetGitHubUpdateChannel(ctx context.Context, repo, channelID string, pollIntervalSeconds int) (string, error)
	DisableGitHub(ctx context.Context) (string, error)
	ShowConfig(ctx context.Context) (string, error)
	ChangePrefix(ctx context.Context, prefix string) (string, error)
	SetCleanup(ctx context.Context, retentionHours, intervalMinutes *int) (string, error)
	SetCountdown(ctx context.Context, targetISO, channelID, timezone string) (string, error)
	DisableCountdown(ctx context.Context) (string, error)
	SetCountdownRole(ctx context.Context, roleID string) (string, error)
	DisableCountdownRole(ctx context.Context) (string, error)
}

// SlashCommandHandler handles Discord slash commands.
type SlashCommandHandler struct {
	session *discordgo.Session
	logger  *slog.Logger
	admin   AdminService
}

// NewSlashCommandHandler creates a new slash command handler.
func NewSlashCommandHandler(session *discordgo.Session, admin AdminService, logger *slog.Logger) *SlashCommandHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlashCommandHandler{
		session: session,
		logger:  logger,
		admin:   admin,
	}
}

var (
	manageServer  = int64(discordgo.PermissionManageServer)
	administrator = int64(discordgo.PermissionAdministrator)
)

// Commands returns the administrative slash command definitions.
func Commands() []*discordgo.ApplicationCommand {
	textChannel := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
	minZero := 0.0

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "set_server_channel",
			Description:              "Set the Discord channel bridged to Minecraft",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Bridge channel",
					ChannelTypes: textChannel,
					Required:     true,
				},
			},
		},
		{
			Name:                     "set_githubupdate_channel",
			Description:              "Configure the repository and channel for GitHub commit updates",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "repo",
					Description: "owner/repo",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Target channel",
					ChannelTypes: textChannel,
					Required:     true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "poll_interval_seconds",
					Description: "Optional, default 120s",
				},
			},
		},
		{
			Name:                     "disable_github",
			Description:              "Disable GitHub commit updates",
			DefaultMemberPermissions: &manageServer,
		},
		{
			Name:                     "show_config",
			Description:              "Show the current bot configuration",
			DefaultMemberPermissions: &manageServer,
		},
		{
			Name:                     "change_prefix",
			Description:              "Change the prefix for text commands",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prefix",
					Description: "New prefix, e.g. ! or --",
					Required:    true,
				},
			},
		},
		{
			Name:                     "set_cleanup",
			Description:              "Set retention and interval for automatic message cleanup",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "retention_hours",
					Description: "Hours until deletion, 0 disables (e.g. 48)",
					MinValue:    &minZero,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "interval_minutes",
					Description: "Interval in minutes (e.g. 60)",
				},
			},
		},
		{
			Name:                     "set_countdown",
			Description:              "Set the countdown target (ISO date/time) and channel",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "target_iso",
					Description: "e.g. 2025-12-31T17:00",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Target channel",
					ChannelTypes: textChannel,
					Required:     true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "timezone_name",
					Description: "e.g. Europe/Berlin",
				},
			},
		},
		{
			Name:                     "disable_countdown",
			Description:              "Disable the countdown",
			DefaultMemberPermissions: &manageServer,
		},
		{
			Name:                     "set_countdown_role",
			Description:              "Set the role mentioned in automatic countdown messages",
			DefaultMemberPermissions: &administrator,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to mention",
					Required:    true,
				},
			},
		},
		{
			Name:                     "disable_countdown_role",
			Description:              "Stop mentioning a role in automatic countdown messages",
			DefaultMemberPermissions: &administrator,
		},
	}
}

// RegisterCommands registers the slash commands with Discord.
// An empty guildID registers them globally.
func (h *SlashCommandHandler) RegisterCommands(guildID string) error {
	for _, cmd := range Commands() {
		_, err := h.session.ApplicationCommandCreate(h.session.State.User.ID, guildID, cmd)
		if err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
		h.logger.Info("registered slash command",
			"command", cmd.Name,
			"guild_id", guildID)
	}

	return nil
}

// SetupHandler sets up the interaction handler.
func (h *SlashCommandHandler) SetupHandler() {
	h.session.AddHandler(h.handleInteraction)
}

func (h *SlashCommandHandler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	reply, err := h.dispatch(context.Background(), data)
	if err != nil {
		h.logger.Info("rejected slash command",
			"command", data.Name,
			"guild_id", i.GuildID,
			"error", err)
		h.respondError(s, i, err.Error())
		return
	}

	h.logger.Info("handled slash command",
		"command", data.Name,
		"guild_id", i.GuildID)
	h.respond(s, i, reply)
}

// options indexes interaction options by name.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func (o options) str(name string) string {
	if opt, ok := o[name]; ok && opt.Value != nil {
		return fmt.Sprint(opt.Value)
	}
	return ""
}

func (o options) integer(name string) *int {
	opt, ok := o[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionInteger {
		return nil
	}
	v := int(opt.IntValue())
	return &v
}

func (h *SlashCommandHandler) dispatch(ctx context.Context, data discordgo.ApplicationCommandInteractionData) (string, error) {
	opts := make(options, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}

	switch data.Name {
	case "set_server_channel":
		return h.admin.SetServerChannel(ctx, opts.str("channel"))
	case "set_githubupdate_channel":
		interval := 0
		if v := opts.integer("poll_interval_seconds"); v != nil {
			interval = *v
		}
		return h.admin.SetGitHubUpdateChannel(ctx, opts.str("repo"), opts.str("channel"), interval)
	case "disable_github":
		return h.admin.DisableGitHub(ctx)
	case "show_config":
		return h.admin.ShowConfig(ctx)
	case "change_prefix":
		return h.admin.ChangePrefix(ctx, opts.str("prefix"))
	case "set_cleanup":
		return h.admin.SetCleanup(ctx, opts.integer("retention_hours"), opts.integer("interval_minutes"))
	case "set_countdown":
		return h.admin.SetCountdown(ctx, opts.str("target_iso"), opts.str("channel"), opts.str("timezone_name"))
	case "disable_countdown":
		return h.admin.DisableCountdown(ctx)
	case "set_countdown_role":
		return h.admin.SetCountdownRole(ctx, opts.str("role"))
	case "disable_countdown_role":
		return h.admin.DisableCountdownRole(ctx)
	default:
		return "", fmt.Errorf("unknown command %q", data.Name)
	}
}

func (h *SlashCommandHandler) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("failed to respond to interaction", "error", err)
	}
}

func (h *SlashCommandHandler) respondError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	h.respond(s, i, "Error: "+message)
}

// RemoveCommands removes all registered slash commands.
func (h *SlashCommandHandler) RemoveCommands(guildID string) error {
	commands, err := h.session.ApplicationCommands(h.session.State.User.ID, guildID)
	if err != nil {
		return fmt.Errorf("get commands: %w", err)
	}

	for _, cmd := range commands {
		if err := h.session.ApplicationCommandDelete(h.session.State.User.ID, guildID, cmd.ID); err != nil {
			h.logger.Warn("failed to delete command",
				"command", cmd.Name,
				"error", err)
		}
	}

	return nil
}
