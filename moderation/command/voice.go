package command

import (
	"context"
	"fmt"

	"github.com/avengersguard/guard/moderation/platform"
)

// Connects the bot to the author's voice channel. Connecting can take seconds, so it runs through Async.
func (h *Handler) join(ctx context.Context, msg Message, args []string) error {
	ch, err := h.Platform.VoiceChannelOf(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		platform.CallErrors.WithLabelValues("VoiceChannelOf").Inc()
		return fmt.Errorf("reading voice state: %w", err)
	}
	if ch == "" {
		h.reply(ctx, msg, "❌ You need to be in a voice channel first.")
		return nil
	}
	logger := h.Logger.With("guild", msg.GuildID, "channel", ch)
	h.Async(func() {
		ctx := context.Background()
		if err := h.Platform.JoinVoice(ctx, msg.GuildID, ch); err != nil {
			platform.CallErrors.WithLabelValues("JoinVoice").Inc()
			logger.Warn("failed to join voice channel", "err", err)
			h.reply(ctx, msg, "❌ Could not join your voice channel.")
			return
		}
		logger.Info("joined voice channel")
		h.reply(ctx, msg, fmt.Sprintf("🔊 Joined <#%s>.", ch))
	})
	return nil
}

func (h *Handler) leave(ctx context.Context, msg Message, args []string) error {
	ok, err := h.Platform.LeaveVoice(ctx, msg.GuildID)
	if err != nil {
		platform.CallErrors.WithLabelValues("LeaveVoice").Inc()
		return fmt.Errorf("leaving voice: %w", err)
	}
	if !ok {
		h.reply(ctx, msg, "❌ I am not in a voice channel.")
		return nil
	}
	h.reply(ctx, msg, "👋 Left the voice channel.")
	return nil
}
