package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeGROOVE-dev/mcbridge/internal/format"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
	"github.com/codeGROOVE-dev/mcbridge/internal/state"
)

const (
	// Ping/pong intervals.
	pingInterval = 30 * time.Second
	pongWait     = 90 * time.Second
	writeWait    = 10 * time.Second

	// Reconnection settings.
	maxReconnectDelay = 2 * time.Minute
	initialDelay      = time.Second
)

var errNoRepo = errors.New("no github repository configured")

// StreamEvent is a repository event received from the event stream.
type StreamEvent struct {
	Timestamp  time.Time
	Type       string
	URL        string
	DeliveryID string
}

// StreamConfig holds configuration for the event stream client.
type StreamConfig struct {
	Settings  SettingsSource
	Poster    Poster
	Dedup     Deduper
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	ServerURL string
	Token     string
}

// Stream relays events from a websocket event stream subscribed to the repository owner.
type Stream struct {
	settings  SettingsSource
	poster    Poster
	dedup     Deduper
	logger    *slog.Logger
	metrics   *metrics.Metrics
	conn      *websocket.Conn
	stopCh    chan struct{}
	serverURL string
	token     string
	mu        sync.RWMutex
	stopOnce  sync.Once
}

// NewStream creates a new event stream client.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("serverURL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("token is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Stream{
		settings:  cfg.Settings,
		poster:    cfg.Poster,
		dedup:     cfg.Dedup,
		logger:    logger,
		metrics:   cfg.Metrics,
		serverURL: cfg.ServerURL,
		token:     cfg.Token,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start runs the connection with automatic reconnection until ctx ends or Stop is called.
func (c *Stream) Start(ctx context.Context) error {
	delay := initialDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		err := c.connect(ctx)
		if err == nil {
			delay = initialDelay
			continue
		}

		// Check for authentication errors
		if isAuthError(err) {
			c.logger.Error("event stream authentication failed", "error", err)
			return err
		}

		if errors.Is(err, errNoRepo) {
			c.logger.Debug("event stream idle", "reason", err)
		} else {
			c.logger.Warn("event stream connection lost, reconnecting",
				"error", err,
				"delay", delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay = min(delay*2, maxReconnectDelay)
	}
}

// Stop gracefully stops the client.
func (c *Stream) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck,gosec // best-effort close during shutdown
		}
		c.mu.Unlock()
	})
}

func (c *Stream) connect(ctx context.Context) error {
	repo := c.settings.Settings().GitHubRepo
	if repo == "" {
		return errNoRepo
	}
	owner, _, err := SplitRepo(repo)
	if err != nil {
		return err
	}

	c.logger.Info("connecting to event stream", "url", c.serverURL, "org", owner)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := dialer.DialContext(ctx, c.serverURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck,gosec // response body must be closed
	}
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
				return &authError{message: fmt.Sprintf("auth failed: %d", resp.StatusCode)}
			}
		}
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		conn.Close() //nolint:errcheck,gosec // best-effort close
		c.mu.Unlock()
	}()

	// Send subscription
	sub := map[string]any{
		"organization":     owner,
		"user_events_only": false,
	}

	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("write subscription: %w", err)
	}

	// Read subscription confirmation
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	var response map[string]any
	if err := conn.ReadJSON(&response); err != nil {
		return fmt.Errorf("read subscription response: %w", err)
	}

	// Check for error response
	if respType, ok := response["type"].(string); ok && respType == "error" {
		errCode, _ := response["error"].(string) //nolint:errcheck // optional field
		msg, _ := response["message"].(string)   //nolint:errcheck // optional field
		if errCode == "access_denied" || errCode == "authentication_failed" {
			return &authError{message: fmt.Sprintf("%s: %s", errCode, msg)}
		}
		return fmt.Errorf("subscription rejected: %s - %s", errCode, msg)
	}

	c.logger.Info("connected to event stream", "org", owner)

	// Start ping sender
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		c.pingLoop(ctx, conn)
	}()

	// Read events
	err = c.readLoop(ctx, conn, owner)

	// Unblock the ping loop if it is still waiting.
	conn.Close() //nolint:errcheck,gosec // closed again by the deferred cleanup
	<-pingDone

	return err
}

func (c *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // best-effort deadline
			err := conn.WriteJSON(map[string]string{"type": "ping"})
			c.mu.Unlock()

			if err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Stream) readLoop(ctx context.Context, conn *websocket.Conn, owner string) error {
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // best-effort deadline

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		var msg map[string]any
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		// Reset read deadline on any message
		conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // best-effort deadline

		msgType, _ := msg["type"].(string) //nolint:errcheck // optional field

		// Handle ping/pong
		if msgType == "ping" {
			c.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))  //nolint:errcheck,gosec // best-effort deadline
			conn.WriteJSON(map[string]string{"type": "pong"}) //nolint:errcheck,gosec // best-effort pong
			c.mu.Unlock()
			continue
		}

		if msgType == "pong" {
			continue
		}

		event := StreamEvent{Type: msgType}
		if url, ok := msg["url"].(string); ok {
			event.URL = url
		}
		if ts, ok := msg["timestamp"].(string); ok {
			if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
				event.Timestamp = t
			}
		}
		if deliveryID, ok := msg["delivery_id"].(string); ok {
			event.DeliveryID = deliveryID
		}

		// The subscription covers the whole owner; keep only the configured repository.
		// A new owner needs a new subscription.
		repo := c.settings.Settings().GitHubRepo
		if o, _, err := SplitRepo(repo); err != nil || !strings.EqualFold(o, owner) {
			c.logger.Info("github repository changed, resubscribing", "org", owner, "repo", repo)
			return nil
		}
		if !RepoEvent(event.URL, repo) {
			continue
		}

		c.logger.Debug("received event",
			"type", event.Type,
			"url", event.URL,
			"delivery_id", event.DeliveryID)

		c.relay(ctx, event)
	}
}

func (c *Stream) relay(ctx context.Context, event StreamEvent) {
	key := "github:stream:" + event.DeliveryID
	if event.DeliveryID == "" {
		key = "github:stream:" + event.Type + ":" + event.URL + ":" + event.Timestamp.String()
	}
	if c.dedup != nil && c.dedup.WasProcessed(ctx, key) {
		return
	}

	channelID := c.settings.Settings().GitHubUpdatesChannelID
	if channelID == "" {
		return
	}
	if _, err := c.poster.PostMessage(ctx, channelID, format.EventMessage(event.Type, event.URL)); err != nil {
		c.logger.Warn("failed to relay stream event", "url", event.URL, "error", err)
		return
	}
	c.metrics.Relayed("stream", 1)

	if c.dedup != nil {
		if err := c.dedup.MarkProcessed(ctx, key, state.EventTTL); err != nil {
			c.logger.Debug("failed to record stream event", "error", err)
		}
	}
}

// RepoEvent reports whether url points into the repository "owner/repo".
func RepoEvent(url, repo string) bool {
	prefix := "https://github.com/" + strings.ToLower(repo) + "/"
	return strings.HasPrefix(strings.ToLower(url), prefix)
}

type authError struct {
	message string
}

func (e *authError) Error() string {
	return e.message
}

func isAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}
