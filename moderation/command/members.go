package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/platform"
)

const (
	RegisterMaleID   = "reg_male"
	RegisterFemaleID = "reg_female"
)

const defaultReason = "Not specified"

func (h *Handler) unjail(ctx context.Context, msg Message, args []string) error {
	target, err := h.target(ctx, msg.GuildID, args, usageUnjail)
	if err != nil {
		return err
	}
	h.Sanctions.Release(ctx, msg.GuildID, target.ID)
	h.reply(ctx, msg, fmt.Sprintf("%s was released from jail and given the unregistered role.", platform.Mention(target.ID)))
	return nil
}

func reasonFrom(args []string) string {
	if len(args) < 2 {
		return defaultReason
	}
	return strings.Join(args[1:], " ")
}

func (h *Handler) ban(ctx context.Context, msg Message, args []string) error {
	target, err := h.target(ctx, msg.GuildID, args, usageBan)
	if err != nil {
		return err
	}
	reason := reasonFrom(args)
	// notify first: the member can't be messaged through the guild once banned
	h.Sanctions.RecordAction(ctx, msg.GuildID, target.ID, msg.Author.ID, "Ban: "+reason)
	if err := h.Platform.Ban(ctx, msg.GuildID, target.ID, reason); err != nil {
		platform.CallErrors.WithLabelValues("Ban").Inc()
		return fmt.Errorf("banning %s: %w", target.ID, err)
	}
	h.reply(ctx, msg, fmt.Sprintf("%s has been banned.", platform.Mention(target.ID)))
	return nil
}

func (h *Handler) kick(ctx context.Context, msg Message, args []string) error {
	target, err := h.target(ctx, msg.GuildID, args, usageKick)
	if err != nil {
		return err
	}
	reason := reasonFrom(args)
	h.Sanctions.RecordAction(ctx, msg.GuildID, target.ID, msg.Author.ID, "Kick: "+reason)
	if err := h.Platform.Kick(ctx, msg.GuildID, target.ID, reason); err != nil {
		platform.CallErrors.WithLabelValues("Kick").Inc()
		return fmt.Errorf("kicking %s: %w", target.ID, err)
	}
	h.reply(ctx, msg, fmt.Sprintf("%s has been kicked from the server.", platform.Mention(target.ID)))
	return nil
}

func (h *Handler) setNickname(ctx context.Context, guildID, memberID, nick string) {
	if err := h.Platform.SetNickname(ctx, guildID, memberID, nick); err != nil {
		platform.CallErrors.WithLabelValues("SetNickname").Inc()
		h.Logger.Warn("failed to set nickname", "err", err, "member", memberID)
	}
}

func (h *Handler) unregister(ctx context.Context, msg Message, args []string) error {
	target, err := h.target(ctx, msg.GuildID, args, usageUnregister)
	if err != nil {
		return err
	}
	if err := h.Platform.SetRoles(ctx, msg.GuildID, target.ID, []string{h.Sanctions.Config.UnregisteredRoleID}); err != nil {
		platform.CallErrors.WithLabelValues("SetRoles").Inc()
		return fmt.Errorf("unregistering %s: %w", target.ID, err)
	}
	h.setNickname(ctx, msg.GuildID, target.ID, DefaultNickname)
	h.reply(ctx, msg, fmt.Sprintf("🚫 %s has been unregistered.", platform.Mention(target.ID)))
	return nil
}

func (h *Handler) rename(ctx context.Context, msg Message, args []string) error {
	if len(args) < 3 {
		return &usageError{usageName}
	}
	target, err := h.target(ctx, msg.GuildID, args, usageName)
	if err != nil {
		return err
	}
	nick := fmt.Sprintf("%s | %s", args[1], args[2])
	if err := h.Platform.SetNickname(ctx, msg.GuildID, target.ID, nick); err != nil {
		platform.CallErrors.WithLabelValues("SetNickname").Inc()
		return fmt.Errorf("renaming %s: %w", target.ID, err)
	}
	h.reply(ctx, msg, fmt.Sprintf("✅ %s is now named **%s**.", platform.Mention(target.ID), nick))
	return nil
}

func (h *Handler) register(ctx context.Context, msg Message, args []string) error {
	target, err := h.target(ctx, msg.GuildID, args, usageRegister)
	if err != nil {
		return err
	}
	name, age := target.Username, "Age"
	if len(args) > 1 {
		name = args[1]
	}
	if len(args) > 2 {
		age = args[2]
	}
	msgID, err := h.Platform.SendComponents(ctx, msg.ChannelID, platform.ComponentMessage{
		Text: fmt.Sprintf("Choose a gender for %s (name: %s | age: %s)", platform.Mention(target.ID), name, age),
		Buttons: [][]platform.Button{{
			{ID: RegisterMaleID, Label: "Male", Style: platform.ButtonPrimary},
			{ID: RegisterFemaleID, Label: "Female", Style: platform.ButtonDanger},
		}},
	})
	if err != nil {
		platform.CallErrors.WithLabelValues("SendComponents").Inc()
		return fmt.Errorf("sending register buttons: %w", err)
	}
	h.Flows.Begin(&flow.Flow{
		Key:       msgID,
		Kind:      flow.KindRegister,
		GuildID:   msg.GuildID,
		UserID:    msg.Author.ID,
		Target:    target.ID,
		Args:      []string{name, age},
		ChannelID: msg.ChannelID,
		MessageID: msgID,
	})
	return nil
}

// Handles a gender button press on a registration prompt.
func (h *Handler) CompleteRegister(ctx context.Context, in platform.Interaction) platform.Response {
	f, ok := h.Flows.Peek(in.MessageID)
	if !ok || f.Kind != flow.KindRegister {
		return platform.Ephemeral("⌛ This registration has expired.")
	}
	if in.User == nil || in.User.ID != f.UserID {
		return platform.Ephemeral("❌ This registration is not yours to complete.")
	}
	var roleID string
	switch in.CustomID {
	case RegisterMaleID:
		roleID = h.Config.MaleRoleID
	case RegisterFemaleID:
		roleID = h.Config.FemaleRoleID
	default:
		return platform.Ephemeral("❌ Unknown option.")
	}
	if _, ok := h.Flows.Take(in.MessageID); !ok {
		return platform.Ephemeral("⌛ This registration has expired.")
	}
	logger := h.Logger.With("guild", f.GuildID, "subject", f.Target, "issuer", f.UserID)

	if roleID != "" {
		if err := h.Platform.AddRole(ctx, f.GuildID, f.Target, roleID); err != nil {
			platform.CallErrors.WithLabelValues("AddRole").Inc()
			logger.Warn("failed to add gender role", "err", err)
		}
	}
	if err := h.Platform.RemoveRole(ctx, f.GuildID, f.Target, h.Sanctions.Config.UnregisteredRoleID); err != nil {
		platform.CallErrors.WithLabelValues("RemoveRole").Inc()
		logger.Warn("failed to remove unregistered role", "err", err)
	}
	h.setNickname(ctx, f.GuildID, f.Target, fmt.Sprintf("%s | %s", f.Args[0], f.Args[1]))
	commandsTotal.WithLabelValues("register", "completed").Inc()
	logger.Info("member registered")
	return platform.Response{Update: true, Text: fmt.Sprintf("%s has been registered!", platform.Mention(f.Target))}
}
