// Protective guards: revert unauthorized structural changes (roles, channels, bots) and filter banned words, sanctioning whoever was responsible.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avengersguard/guard/moderation/keyword"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/sanction"
)

type Platform interface {
	platform.Members
	platform.Roles
	platform.Channels
	platform.Messenger
	platform.Audit
}

const (
	ReasonRoleCreate    = "Unauthorized role create"
	ReasonRoleDelete    = "Unauthorized role delete"
	ReasonChannelCreate = "Unauthorized channel create"
	ReasonChannelDelete = "Unauthorized channel delete"
	ReasonBotAdd        = "Unauthorized bot add"
	ReasonBannedWord    = "Banned word usage"
)

type Config struct {
	// members holding any of these roles may make structural changes (in addition to the sanction exempt role)
	BypassRoleIDs []string
	LogChannelID  string
	// channels the guards never touch, eg ephemeral voice rooms whose owners may delete them
	IgnoreChannel func(channelID string) bool
}

// Not safe for concurrent use; handlers run on the control thread.
type Guard struct {
	Logger    *slog.Logger
	Platform  Platform
	Sanctions *sanction.Scheduler
	Words     *keyword.List
	Config    Config
}

func NewGuard(logger *slog.Logger, p Platform, sanctions *sanction.Scheduler, words *keyword.List, config Config) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		Logger:    logger.With("component", "guard"),
		Platform:  p,
		Sanctions: sanctions,
		Words:     words,
		Config:    config,
	}
}

// Resolves who made an audited change and decides whether they are allowed to. Returns nil if the change should stand.
func (g *Guard) offender(ctx context.Context, logger *slog.Logger, guildID string, action platform.AuditAction, targetID string) *platform.Actor {
	actor, err := g.Platform.ResolveExecutor(ctx, guildID, action, targetID)
	if err != nil {
		platform.CallErrors.WithLabelValues("ResolveExecutor").Inc()
		logger.Warn("failed to resolve executor from audit log", "err", err)
		return nil
	}
	if actor == nil || actor.Bot {
		return nil
	}
	mem, err := g.Platform.FetchMember(ctx, guildID, actor.ID)
	if err != nil {
		platform.CallErrors.WithLabelValues("FetchMember").Inc()
		logger.Warn("failed to fetch executor", "err", err, "executor", actor.ID)
		return nil
	}
	if mem == nil {
		return nil
	}
	if g.Sanctions.IsExempt(mem) || mem.HasAnyRole(g.Config.BypassRoleIDs) {
		guardActions.WithLabelValues(action.String(), "allowed").Inc()
		logger.Info("executor is exempt, change allowed", "executor", actor.ID)
		return nil
	}
	return actor
}

func (g *Guard) punish(ctx context.Context, logger *slog.Logger, guildID string, action platform.AuditAction, actor *platform.Actor, reason, logText string) {
	if _, ok := g.Sanctions.ApplyProtective(ctx, guildID, actor.ID, reason, 0); !ok {
		logger.Info("protective sanction not applied", "executor", actor.ID)
	}
	guardActions.WithLabelValues(action.String(), "reverted").Inc()
	g.log(ctx, logger, logText)
}

func (g *Guard) log(ctx context.Context, logger *slog.Logger, text string) {
	if g.Config.LogChannelID == "" {
		return
	}
	if err := g.Platform.SendChannelMessage(ctx, g.Config.LogChannelID, text); err != nil {
		platform.CallErrors.WithLabelValues("SendChannelMessage").Inc()
		logger.Warn("failed to post to log channel", "err", err)
	}
}

func actorTag(a *platform.Actor) string {
	if a.Tag != "" {
		return a.Tag
	}
	return platform.Mention(a.ID)
}

func (g *Guard) RoleCreated(ctx context.Context, guildID string, role platform.Role) {
	logger := g.Logger.With("guild", guildID, "role", role.ID, "action", platform.AuditRoleCreate.String())
	actor := g.offender(ctx, logger, guildID, platform.AuditRoleCreate, role.ID)
	if actor == nil {
		return
	}
	if err := g.Platform.DeleteRole(ctx, guildID, role.ID); err != nil {
		platform.CallErrors.WithLabelValues("DeleteRole").Inc()
		logger.Warn("failed to delete unauthorized role", "err", err)
	}
	g.punish(ctx, logger, guildID, platform.AuditRoleCreate, actor, ReasonRoleCreate, strings.Join([]string{
		fmt.Sprintf("🚨 **Unauthorized role create:** %s", role.Name),
		fmt.Sprintf("👤 **Created by:** %s", actorTag(actor)),
		"⚖️ **Action:** role deleted, member jailed.",
	}, "\n"))
}

// role is the last known state of the deleted role.
func (g *Guard) RoleDeleted(ctx context.Context, guildID string, role platform.Role) {
	logger := g.Logger.With("guild", guildID, "role", role.ID, "action", platform.AuditRoleDelete.String())
	actor := g.offender(ctx, logger, guildID, platform.AuditRoleDelete, role.ID)
	if actor == nil {
		return
	}
	restored, err := g.Platform.CreateRole(ctx, guildID, role)
	if err != nil {
		platform.CallErrors.WithLabelValues("CreateRole").Inc()
		logger.Warn("failed to recreate deleted role", "err", err)
	} else {
		logger.Info("recreated deleted role", "new_role", restored.ID)
	}
	g.punish(ctx, logger, guildID, platform.AuditRoleDelete, actor, ReasonRoleDelete, strings.Join([]string{
		fmt.Sprintf("🚨 **Role deleted:** %s", role.Name),
		fmt.Sprintf("👤 **Deleted by:** %s", actorTag(actor)),
		"⚖️ **Action:** member jailed, role recreated.",
	}, "\n"))
}

func (g *Guard) ignored(channelID string) bool {
	return g.Config.IgnoreChannel != nil && g.Config.IgnoreChannel(channelID)
}

func (g *Guard) ChannelCreated(ctx context.Context, guildID string, ch platform.Channel) {
	if g.ignored(ch.ID) {
		return
	}
	logger := g.Logger.With("guild", guildID, "channel", ch.ID, "action", platform.AuditChannelCreate.String())
	actor := g.offender(ctx, logger, guildID, platform.AuditChannelCreate, ch.ID)
	if actor == nil {
		return
	}
	if err := g.Platform.DeleteChannel(ctx, ch.ID); err != nil {
		platform.CallErrors.WithLabelValues("DeleteChannel").Inc()
		logger.Warn("failed to delete unauthorized channel", "err", err)
	}
	g.punish(ctx, logger, guildID, platform.AuditChannelCreate, actor, ReasonChannelCreate, strings.Join([]string{
		fmt.Sprintf("🚨 **Unauthorized channel create:** %s", ch.Name),
		fmt.Sprintf("👤 **Created by:** %s", actorTag(actor)),
		"⚖️ **Action:** channel deleted, member jailed.",
	}, "\n"))
}

// ch is the last known state of the deleted channel.
func (g *Guard) ChannelDeleted(ctx context.Context, guildID string, ch platform.Channel) {
	if g.ignored(ch.ID) {
		return
	}
	logger := g.Logger.With("guild", guildID, "channel", ch.ID, "action", platform.AuditChannelDelete.String())
	actor := g.offender(ctx, logger, guildID, platform.AuditChannelDelete, ch.ID)
	if actor == nil {
		return
	}
	restored, err := g.Platform.CreateChannel(ctx, guildID, platform.ChannelSpec{
		Name:       ch.Name,
		Kind:       ch.Kind,
		ParentID:   ch.ParentID,
		UserLimit:  ch.UserLimit,
		Overwrites: ch.Overwrites,
		Reason:     "restoring deleted channel",
	})
	if err != nil {
		platform.CallErrors.WithLabelValues("CreateChannel").Inc()
		logger.Warn("failed to recreate deleted channel", "err", err)
	} else {
		logger.Info("recreated deleted channel", "new_channel", restored.ID)
	}
	g.punish(ctx, logger, guildID, platform.AuditChannelDelete, actor, ReasonChannelDelete, strings.Join([]string{
		fmt.Sprintf("🚨 **Channel deleted:** %s", ch.Name),
		fmt.Sprintf("👤 **Deleted by:** %s", actorTag(actor)),
		"⚖️ **Action:** channel recreated, member jailed.",
	}, "\n"))
}

func (g *Guard) BotAdded(ctx context.Context, guildID string, bot platform.Member) {
	logger := g.Logger.With("guild", guildID, "bot", bot.ID, "action", platform.AuditBotAdd.String())
	actor := g.offender(ctx, logger, guildID, platform.AuditBotAdd, bot.ID)
	if actor == nil {
		return
	}
	if err := g.Platform.Kick(ctx, guildID, bot.ID, ReasonBotAdd); err != nil {
		platform.CallErrors.WithLabelValues("Kick").Inc()
		logger.Warn("failed to remove unauthorized bot", "err", err)
	}
	g.punish(ctx, logger, guildID, platform.AuditBotAdd, actor, ReasonBotAdd, strings.Join([]string{
		"🚫 **Unauthorized bot add!**",
		fmt.Sprintf("**%s** added a bot to the server without the exempt role.", actorTag(actor)),
		fmt.Sprintf("**Bot:** %s", bot.Username),
		"The member's roles were removed and they were jailed.",
	}, "\n"))
}
