package github

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v50/github"
	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/mcbridge/internal/format"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
	"github.com/codeGROOVE-dev/mcbridge/internal/state"
)

const (
	maxPayloadBytes = 5 << 20
	signatureHeader = "X-Hub-Signature-256"
)

// Deduper remembers processed event keys.
type Deduper interface {
	WasProcessed(ctx context.Context, key string) bool
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error
}

// WebhookConfig configures a WebhookHandler.
type WebhookConfig struct {
	Settings SettingsSource
	Poster   Poster
	Dedup    Deduper
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Secret   string
}

// WebhookHandler verifies and relays GitHub webhook deliveries.
type WebhookHandler struct {
	settings SettingsSource
	poster   Poster
	dedup    Deduper
	logger   *slog.Logger
	metrics  *metrics.Metrics
	secret   []byte
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		settings: cfg.Settings,
		poster:   cfg.Poster,
		dedup:    cfg.Dedup,
		logger:   logger,
		metrics:  cfg.Metrics,
		secret:   []byte(cfg.Secret),
	}
}

func (h *WebhookHandler) reply(w http.ResponseWriter, status int, result, body string) {
	h.metrics.Webhook("github", result)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body + "\n")); err != nil {
		h.logger.Debug("failed to write webhook response", "error", err)
	}
}

// ServeHTTP handles POST /github.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.reply(w, http.StatusBadRequest, "unreadable", "unreadable body")
		return
	}

	// An unset secret cannot verify anything.
	if len(h.secret) == 0 {
		h.reply(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	if err := github.ValidateSignature(r.Header.Get(signatureHeader), body, h.secret); err != nil {
		h.logger.Warn("rejected webhook with invalid signature",
			"remote_addr", r.RemoteAddr,
			"error", err)
		h.reply(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
		return
	}

	eventType := github.WebHookType(r)
	if eventType != "push" && eventType != "pull_request" {
		h.logger.Debug("ignored webhook event", "event", eventType)
		h.reply(w, http.StatusOK, "ignored", "ignored")
		return
	}

	event, err := github.ParseWebHook(eventType, body)
	if err != nil {
		h.reply(w, http.StatusBadRequest, "malformed", "malformed payload")
		return
	}

	delivery := github.DeliveryID(r)
	if delivery == "" {
		delivery = uuid.NewString()
	}
	key := "github:delivery:" + delivery
	ctx := r.Context()
	if h.dedup != nil && h.dedup.WasProcessed(ctx, key) {
		h.reply(w, http.StatusOK, "duplicate", "duplicate")
		return
	}

	channelID := h.settings.Settings().GitHubUpdatesChannelID
	messages := eventMessages(event)
	if channelID == "" || len(messages) == 0 {
		h.reply(w, http.StatusOK, "ignored", "nothing to relay")
		return
	}

	for i, msg := range messages {
		if _, err := h.poster.PostMessage(ctx, channelID, msg); err != nil {
			h.logger.Warn("failed to relay webhook event",
				"event", eventType,
				"delivery_id", delivery,
				"error", err)
			h.metrics.Relayed("webhook", i)
			h.reply(w, http.StatusBadGateway, "relay_failed", "relay failed")
			return
		}
	}
	h.metrics.Relayed("webhook", len(messages))

	if h.dedup != nil {
		if err := h.dedup.MarkProcessed(ctx, key, state.EventTTL); err != nil {
			h.logger.Warn("failed to record webhook delivery", "delivery_id", delivery, "error", err)
		}
	}

	h.logger.Info("relayed webhook event",
		"event", eventType,
		"delivery_id", delivery,
		"messages", len(messages))
	h.reply(w, http.StatusOK, "relayed", "ok")
}

// eventMessages renders the channel messages for a parsed event.
func eventMessages(event any) []string {
	switch e := event.(type) {
	case *github.PushEvent:
		if e.GetDeleted() {
			return nil
		}
		msgs := make([]string, 0, len(e.Commits))
		for _, c := range e.Commits {
			msgs = append(msgs, format.CommitMessage(format.Commit{
				Author:  c.GetAuthor().GetName(),
				Message: c.GetMessage(),
				URL:     c.GetURL(),
			}))
		}
		return msgs
	case *github.PullRequestEvent:
		switch e.GetAction() {
		case "opened", "closed", "reopened":
		default:
			return nil
		}
		pr := e.GetPullRequest()
		return []string{format.PullRequestMessage(format.PullRequest{
			Repo:   e.GetRepo().GetFullName(),
			Action: e.GetAction(),
			Number: e.GetNumber(),
			Title:  pr.GetTitle(),
			Author: pr.GetUser().GetLogin(),
			URL:    pr.GetHTMLURL(),
			Merged: pr.GetMerged(),
		})}
	default:
		return nil
	}
}
