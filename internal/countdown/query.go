package countdown

import (
	"context"
	"fmt"

	"github.com/codeGROOVE-dev/mcbridge/internal/config"
)

// Replies to the on-demand query.
const (
	ReplyNoTarget      = "No countdown target set."
	ReplyInvalidTarget = "The countdown target is invalid. Ask an admin to set it again."
	ReplyReached       = "The target has already been reached."
	replyRemaining     = "Time remaining: %s"
)

// Query answers a user's "how long" request posted as triggerID in channelID.
// The previous reply and the previous trigger message are removed so that
// at most one exchange stays visible. Role mentions are never added.
func (s *Scheduler) Query(ctx context.Context, channelID, triggerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.settings.Settings()
	if cfg.CountdownTargetISO == "" {
		return s.reply(ctx, channelID, ReplyNoTarget)
	}

	target, err := ParseTarget(cfg.CountdownTargetISO, cfg.Timezone())
	if err != nil {
		s.logger.Warn("countdown target unusable", "target", cfg.CountdownTargetISO, "error", err)
		return s.reply(ctx, channelID, ReplyInvalidTarget)
	}

	remaining := target.Sub(s.now())
	if remaining <= 0 {
		return s.reply(ctx, channelID, ReplyReached)
	}

	if prev := cfg.CountdownLastTriggerID; prev != "" && prev != triggerID {
		if err := s.gateway.DeleteMessage(ctx, channelID, prev); err != nil {
			s.logger.Debug("previous trigger not deleted", "message_id", prev, "error", err)
		}
	}

	content := fmt.Sprintf(replyRemaining, FormatRemaining(remaining))
	if !s.replace(ctx, channelID, cfg.CountdownLastMessageID, content, func(st *config.Settings, id string) {
		st.CountdownLastMessageID = id
		st.CountdownLastTriggerID = triggerID
	}) {
		return fmt.Errorf("post countdown reply to %s failed", channelID)
	}

	s.metrics.Announcement("query")
	return nil
}

func (s *Scheduler) reply(ctx context.Context, channelID, content string) error {
	if _, err := s.gateway.PostMessage(ctx, channelID, content); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	return nil
}
