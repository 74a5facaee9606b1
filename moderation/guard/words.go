package guard

import (
	"context"
	"fmt"

	"github.com/avengersguard/guard/moderation/platform"
)

type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    *platform.Member
	Content   string
}

// Checks a message against the banned-word list. Returns true if the message was handled (and should not be processed further).
func (g *Guard) CheckMessage(ctx context.Context, msg Message) bool {
	if msg.Author == nil || msg.Author.Bot {
		return false
	}
	term, ok := g.Words.Match(msg.Content)
	if !ok {
		return false
	}
	logger := g.Logger.With("guild", msg.GuildID, "channel", msg.ChannelID, "author", msg.Author.ID)
	if g.Sanctions.IsExempt(msg.Author) {
		guardActions.WithLabelValues("banned-word", "allowed").Inc()
		return false
	}
	logger.Info("banned word used", "term", term)

	if _, ok := g.Sanctions.ApplyProtective(ctx, msg.GuildID, msg.Author.ID, ReasonBannedWord, 0); !ok {
		logger.Info("protective sanction not applied")
	}
	if err := g.Platform.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		platform.CallErrors.WithLabelValues("DeleteMessage").Inc()
		logger.Warn("failed to delete message", "err", err)
	}
	guardActions.WithLabelValues("banned-word", "reverted").Inc()
	name := msg.Author.Username
	if name == "" {
		name = platform.Mention(msg.Author.ID)
	}
	g.log(ctx, logger, fmt.Sprintf("%s used a banned word and was jailed.", name))
	return true
}
