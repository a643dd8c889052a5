// Package minecraft talks to a Minecraft server over RCON and the UDP query protocol.
package minecraft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gorcon/rcon"
)

const (
	dialTimeout = 5 * time.Second
	ioDeadline  = 5 * time.Second
	maxSayLen   = 256
)

// ErrInvalidPlayerName is returned for names Minecraft would not accept.
var ErrInvalidPlayerName = errors.New("invalid Minecraft player name")

var playerName = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// ValidPlayerName reports whether name is a valid Java edition player name.
func ValidPlayerName(name string) bool {
	return playerName.MatchString(name)
}

// RCON executes console commands on a Minecraft server.
// Each call opens a short-lived connection.
type RCON struct {
	addr     string
	password string
	logger   *slog.Logger
}

// NewRCON creates an RCON client for addr ("host:port").
func NewRCON(addr, password string, logger *slog.Logger) *RCON {
	if logger == nil {
		logger = slog.Default()
	}
	return &RCON{addr: addr, password: password, logger: logger}
}

// Execute runs a console command and returns the server's reply.
func (r *RCON) Execute(ctx context.Context, command string) (string, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		conn, err := rcon.Dial(r.addr, r.password,
			rcon.SetDialTimeout(dialTimeout),
			rcon.SetDeadline(ioDeadline))
		if err != nil {
			done <- result{err: fmt.Errorf("rcon dial %s: %w", r.addr, err)}
			return
		}
		defer conn.Close() //nolint:errcheck // connection is discarded

		out, err := conn.Execute(command)
		if err != nil {
			done <- result{err: fmt.Errorf("rcon execute: %w", err)}
			return
		}
		done <- result{out: out}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.out, res.err
	}
}

// WhitelistAdd adds a player to the server whitelist.
func (r *RCON) WhitelistAdd(ctx context.Context, name string) (string, error) {
	if !ValidPlayerName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlayerName, name)
	}
	out, err := r.Execute(ctx, "whitelist add "+name)
	if err != nil {
		return "", err
	}
	r.logger.Info("whitelisted player", "player", name, "reply", out)
	return out, nil
}

// Say broadcasts a chat line to all players.
func (r *RCON) Say(ctx context.Context, text string) error {
	_, err := r.Execute(ctx, "say "+sanitize(text))
	return err
}

// sanitize flattens text to a single console line.
func sanitize(text string) string {
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		case r == '§':
			// Formatting codes.
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > maxSayLen {
		text = string(runes[:maxSayLen-3]) + "..."
	}
	return text
}
