package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/avengersguard/guard/moderation/panel"
	"github.com/avengersguard/guard/moderation/platform"
)

// Platform's bulk delete limit.
const maxPurge = 100

// Needs the Manage Messages permission rather than a moderator role.
func (h *Handler) purge(ctx context.Context, msg Message, args []string) error {
	if !msg.Author.Can(platform.PermManageMessages) {
		return ErrUnauthorized
	}
	if len(args) != 1 {
		return &usageError{usagePurge}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 || n > maxPurge {
		return &usageError{usagePurge}
	}
	if err := h.Platform.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		platform.CallErrors.WithLabelValues("DeleteMessage").Inc()
		h.Logger.Debug("failed to delete purge command message", "err", err)
	}
	deleted, err := h.Platform.PurgeMessages(ctx, msg.ChannelID, n)
	if err != nil {
		platform.CallErrors.WithLabelValues("PurgeMessages").Inc()
		return fmt.Errorf("purging messages: %w", err)
	}
	h.reply(ctx, msg, fmt.Sprintf("✅ Deleted %d messages.", deleted))
	return nil
}

func (h *Handler) announce(ctx context.Context, msg Message, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		return &usageError{usageAnnounce}
	}
	members, err := h.Platform.ListMembers(ctx, msg.GuildID)
	if err != nil {
		platform.CallErrors.WithLabelValues("ListMembers").Inc()
		return fmt.Errorf("listing members: %w", err)
	}
	logger := h.Logger.With("guild", msg.GuildID, "author", msg.Author.ID)
	// sending is slow and rate limited; keep it off the control thread
	h.Async(func() {
		sent := 0
		for _, mem := range members {
			if mem.Bot {
				continue
			}
			if err := h.Platform.SendDirectMessage(context.Background(), mem.ID, text); err != nil {
				platform.CallErrors.WithLabelValues("SendDirectMessage").Inc()
				continue
			}
			sent++
		}
		logger.Info("announcement delivered", "sent", sent, "members", len(members))
	})
	h.reply(ctx, msg, "📨 Announcement is being sent via DM.")
	return nil
}

const (
	setupCategoryName = "AVENGERS"
	setupTextName     = "🗽avengers-special"
)

// Builds the private room category: a panel text channel and the room creation channel. Restricted to exempt members and administrators.
func (h *Handler) setup(ctx context.Context, msg Message, args []string) error {
	if !msg.Author.Admin && !h.Sanctions.IsExempt(msg.Author) {
		return ErrUnauthorized
	}
	logger := h.Logger.With("guild", msg.GuildID, "author", msg.Author.ID)
	create := func(spec platform.ChannelSpec) (*platform.Channel, error) {
		spec.Reason = "Private room setup"
		ch, err := h.Platform.CreateChannel(ctx, msg.GuildID, spec)
		if err != nil {
			platform.CallErrors.WithLabelValues("CreateChannel").Inc()
			return nil, fmt.Errorf("creating %q: %w", spec.Name, err)
		}
		return ch, nil
	}

	cat, err := create(platform.ChannelSpec{Name: setupCategoryName, Kind: platform.ChannelCategory})
	if err != nil {
		return err
	}
	text, err := create(platform.ChannelSpec{Name: setupTextName, Kind: platform.ChannelText, ParentID: cat.ID})
	if err != nil {
		return err
	}
	voice, err := create(platform.ChannelSpec{Name: h.Config.CreationChannelName, Kind: platform.ChannelVoice, ParentID: cat.ID})
	if err != nil {
		return err
	}
	if _, err := h.Platform.SendComponents(ctx, text.ID, panel.Message()); err != nil {
		platform.CallErrors.WithLabelValues("SendComponents").Inc()
		return fmt.Errorf("posting room panel: %w", err)
	}
	logger.Info("private room setup complete", "category", cat.ID, "panel", text.ID, "creation", voice.ID)
	h.reply(ctx, msg, fmt.Sprintf("✅ Setup complete: panel in <#%s>, join <#%s> to create a room.", text.ID, voice.ID))
	return nil
}
