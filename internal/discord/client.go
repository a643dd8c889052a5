// Package discord provides Discord API client functionality.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/mcbridge/internal/cleanup"
)

// InboundMessage is a guild chat message delivered to a MessageHandler.
type InboundMessage struct {
	GuildID    string
	ChannelID  string
	MessageID  string
	AuthorID   string
	AuthorName string
	Content    string
	FromBot    bool
}

// MessageHandler receives chat messages from the gateway.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg InboundMessage)
}

// Client wraps discordgo.Session with a clean interface for bot operations.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
	handler MessageHandler
	mu      sync.RWMutex
}

// New creates a new Discord client.
func New(token string, logger *slog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	session.Client = &http.Client{Timeout: 20 * time.Second}

	return newClient(session, logger), nil
}

func newClient(session *discordgo.Session, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		session: session,
		logger:  logger,
	}
	session.AddHandler(c.onMessageCreate)
	return c
}

// retryableCtx wraps a function with standard retry configuration.
func retryableCtx(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			// 4xx responses will not succeed on a second attempt.
			var restErr *discordgo.RESTError
			if errors.As(err, &restErr) && restErr.Response != nil {
				code := restErr.Response.StatusCode
				return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
			}
			return true
		}),
	)
}

// openTimeout is the maximum time to wait for Discord connection.
const openTimeout = 30 * time.Second

// Open opens the WebSocket connection to Discord with a timeout.
func (c *Client) Open() error {
	done := make(chan error, 1)
	go func() {
		done <- c.session.Open()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(openTimeout):
		// Try to close the session to clean up
		c.session.Close() //nolint:errcheck,gosec // best-effort close on timeout
		return errors.New("timeout waiting for Discord connection")
	}
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	return c.session.Close()
}

// Session returns the underlying discordgo session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// SetMessageHandler sets the receiver for guild chat messages.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil || m.Message == nil || m.Author == nil || m.GuildID == "" {
		return
	}

	name := m.Author.GlobalName
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	if name == "" {
		name = m.Author.Username
	}

	h.HandleMessage(context.Background(), InboundMessage{
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
		AuthorID:   m.Author.ID,
		AuthorName: name,
		Content:    m.Content,
		FromBot:    m.Author.Bot,
	})
}

// PostMessage sends a plain text message to a channel with link embeds suppressed.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (string, error) {
	var msg *discordgo.Message
	err := retryableCtx(ctx, func() error {
		var err error
		msg, err = c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content: text,
			Flags:   discordgo.MessageFlagsSuppressEmbeds,
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles},
			},
		}, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Info("posted channel message",
		"channel_id", channelID,
		"message_id", msg.ID,
		"content", text)

	return msg.ID, nil
}

// DeleteMessage removes a message. A message that no longer exists counts as deleted.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	err := retryableCtx(ctx, func() error {
		return c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
	})
	if err != nil && !isUnknownMessage(err) {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}

	c.logger.Debug("deleted channel message",
		"channel_id", channelID,
		"message_id", messageID)
	return nil
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// ResolveChannel confirms a channel exists and returns its guild id.
func (c *Client) ResolveChannel(ctx context.Context, channelID string) (string, error) {
	if c.session.State != nil {
		if ch, err := c.session.State.Channel(channelID); err == nil {
			return ch.GuildID, nil
		}
	}

	var ch *discordgo.Channel
	err := retryableCtx(ctx, func() error {
		var err error
		ch, err = c.session.Channel(channelID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch channel %s: %w", channelID, err)
	}
	return ch.GuildID, nil
}

// RoleMention returns the mention markup for a guild role.
func (c *Client) RoleMention(ctx context.Context, guildID, roleID string) (string, error) {
	if c.session.State != nil {
		if role, err := c.session.State.Role(guildID, roleID); err == nil {
			return role.Mention(), nil
		}
	}

	var roles []*discordgo.Role
	err := retryableCtx(ctx, func() error {
		var err error
		roles, err = c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch roles for guild %s: %w", guildID, err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role.Mention(), nil
		}
	}
	return "", fmt.Errorf("role %s not found in guild %s", roleID, guildID)
}

// MessagesBefore lists up to limit messages older than beforeID, newest first.
func (c *Client) MessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]cleanup.Message, error) {
	var messages []*discordgo.Message
	err := retryableCtx(ctx, func() error {
		var err error
		messages, err = c.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel messages: %w", err)
	}

	out := make([]cleanup.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, cleanup.Message{ID: m.ID, CreatedAt: m.Timestamp})
	}
	return out, nil
}

// BotUserID returns the bot's own user id once connected.
func (c *Client) BotUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}
