package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codeGROOVE-dev/mcbridge/internal/format"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
)

const (
	maxChatPayloadBytes = 64 << 10
	chatSignatureHeader = "X-Signature-256"
)

// ChatEvent is a Minecraft chat line delivered by a server plugin.
type ChatEvent struct {
	Player  string `json:"player"`
	Message string `json:"message"`
}

// ChatWebhookConfig configures a ChatWebhook.
type ChatWebhookConfig struct {
	Settings SettingsStore
	Poster   Poster
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Secret   string
}

// ChatWebhook posts Minecraft chat lines to the bridge channel.
type ChatWebhook struct {
	settings SettingsStore
	poster   Poster
	logger   *slog.Logger
	metrics  *metrics.Metrics
	secret   []byte
}

// NewChatWebhook creates the Minecraft chat webhook handler.
func NewChatWebhook(cfg ChatWebhookConfig) *ChatWebhook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatWebhook{
		settings: cfg.Settings,
		poster:   cfg.Poster,
		logger:   logger,
		metrics:  cfg.Metrics,
		secret:   []byte(cfg.Secret),
	}
}

// validSignature checks a "sha256=<hex>" HMAC of body.
func validSignature(secret, body []byte, header string) bool {
	if len(secret) == 0 {
		return false
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (h *ChatWebhook) reply(w http.ResponseWriter, status int, result string) {
	h.metrics.Webhook("minecraft", result)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(result + "\n")); err != nil {
		h.logger.Debug("failed to write webhook response", "error", err)
	}
}

// ServeHTTP handles POST /minecraft.
func (h *ChatWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatPayloadBytes))
	if err != nil {
		h.reply(w, http.StatusBadRequest, "unreadable")
		return
	}
	if !validSignature(h.secret, body, r.Header.Get(chatSignatureHeader)) {
		h.logger.Warn("rejected chat webhook with invalid signature", "remote_addr", r.RemoteAddr)
		h.reply(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var ev ChatEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.reply(w, http.StatusBadRequest, "malformed")
		return
	}
	ev.Player = strings.TrimSpace(ev.Player)
	ev.Message = strings.TrimSpace(ev.Message)
	if ev.Player == "" || ev.Message == "" {
		h.reply(w, http.StatusBadRequest, "malformed")
		return
	}

	channelID := h.settings.Settings().ChatChannelID
	if channelID == "" {
		h.reply(w, http.StatusOK, "ignored")
		return
	}

	if _, err := h.poster.PostMessage(r.Context(), channelID, format.MinecraftToDiscord(ev.Player, ev.Message)); err != nil {
		h.logger.Warn("failed to bridge message to Discord", "player", ev.Player, "error", err)
		h.reply(w, http.StatusBadGateway, "relay_failed")
		return
	}
	h.metrics.Bridged(directionFromMinecraft)
	h.reply(w, http.StatusOK, "ok")
}
