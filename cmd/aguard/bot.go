package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avengersguard/guard/moderation"
	"github.com/avengersguard/guard/moderation/dispatch"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/platform/discordplatform"
	"github.com/avengersguard/guard/moderation/voiceroom"

	"github.com/bwmarrin/discordgo"
)

// Bridges gateway events to the engine. Handlers run on the gateway goroutine and only convert and enqueue; the engine itself runs on the control thread.
type Bot struct {
	Logger   *slog.Logger
	Session  *discordgo.Session
	Platform *discordplatform.Platform
	Engine   *moderation.Engine
	Loop     *dispatch.Loop
	// events from other guilds are dropped, if set
	GuildID string
}

func NewBot(logger *slog.Logger, s *discordgo.Session, p *discordplatform.Platform, eng *moderation.Engine, loop *dispatch.Loop, guildID string) *Bot {
	return &Bot{
		Logger:   logger.With("system", "bot"),
		Session:  s,
		Platform: p,
		Engine:   eng,
		Loop:     loop,
		GuildID:  guildID,
	}
}

func (b *Bot) Register() {
	b.Session.AddHandler(b.onReady)
	b.Session.AddHandler(b.onMessageCreate)
	b.Session.AddHandler(b.onInteractionCreate)
	b.Session.AddHandler(b.onVoiceStateUpdate)
	b.Session.AddHandler(b.onGuildMemberAdd)
	b.Session.AddHandler(b.onGuildRoleCreate)
	b.Session.AddHandler(b.onGuildRoleDelete)
	b.Session.AddHandler(b.onChannelCreate)
	b.Session.AddHandler(b.onChannelDelete)
}

func (b *Bot) wanted(guildID string) bool {
	return guildID != "" && (b.GuildID == "" || b.GuildID == guildID)
}

func (b *Bot) submit(kind string, fn func(ctx context.Context)) {
	gatewayEvents.WithLabelValues(kind).Inc()
	if err := b.Loop.Submit(kind, fn); err != nil {
		if !errors.Is(err, dispatch.ErrStopped) {
			b.Logger.Error("failed to queue gateway event", "err", err, "event", kind)
		}
		gatewayEventsDropped.WithLabelValues(kind).Inc()
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.Logger.Info("gateway ready", "user", r.User.String(), "guilds", len(r.Guilds))
	if err := s.UpdateWatchStatus(0, "the server"); err != nil {
		b.Logger.Debug("failed to set presence", "err", err)
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if !b.wanted(m.GuildID) || m.Author == nil || m.Author.Bot {
		return
	}
	evt := moderation.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Author:    b.Platform.ToMember(m.GuildID, m.Member, m.Author),
		Content:   m.Content,
	}
	b.submit("message", func(ctx context.Context) {
		if err := b.Engine.ProcessMessage(ctx, evt); err != nil {
			b.Logger.Debug("message handling failed", "err", err, "channel", evt.ChannelID)
		}
	})
}

// The response is sent from the job, so it reflects state after the interaction was applied.
func (b *Bot) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.wanted(i.GuildID) {
		return
	}
	in, ok := b.Platform.ToInteraction(i.Interaction)
	if !ok {
		return
	}
	b.submit("interaction", func(ctx context.Context) {
		resp := b.Engine.ProcessInteraction(ctx, in)
		if err := b.Platform.Respond(ctx, i.Interaction, resp); err != nil {
			platform.CallErrors.WithLabelValues("Respond").Inc()
			b.Logger.Warn("failed to respond to interaction", "err", err, "custom_id", in.CustomID)
		}
	})
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil || !b.wanted(v.GuildID) {
		return
	}
	upd := voiceroom.VoiceUpdate{
		GuildID:  v.GuildID,
		MemberID: v.UserID,
		After:    v.ChannelID,
	}
	if v.BeforeUpdate != nil {
		upd.Before = v.BeforeUpdate.ChannelID
	}
	if upd.Before == upd.After {
		// mute, deafen, or stream toggles
		return
	}
	if v.Member != nil && v.Member.User != nil {
		upd.Username = v.Member.User.Username
	}
	if upd.After != "" {
		if ch, err := s.State.Channel(upd.After); err == nil {
			c := discordplatform.ToChannel(ch)
			upd.AfterChannel = &c
		}
	}
	b.submit("voice", func(ctx context.Context) {
		if err := b.Engine.ProcessVoiceUpdate(ctx, upd); err != nil {
			b.Logger.Warn("voice update handling failed", "err", err, "member", upd.MemberID)
		}
	})
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || !b.wanted(m.GuildID) {
		return
	}
	mem := b.Platform.ToMember(m.GuildID, m.Member, nil)
	if mem == nil {
		return
	}
	guildID := m.GuildID
	b.submit("member-join", func(ctx context.Context) {
		b.Engine.ProcessMemberJoin(ctx, guildID, *mem)
	})
}

func (b *Bot) onGuildRoleCreate(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
	if r.GuildRole == nil || r.Role == nil || !b.wanted(r.GuildID) {
		return
	}
	role := discordplatform.ToRole(r.Role)
	guildID := r.GuildID
	b.submit("role-create", func(ctx context.Context) {
		b.Engine.ProcessRoleCreate(ctx, guildID, role)
	})
}

// The gateway only sends the ID of a deleted role; the definition needed to restore it comes from the platform's role cache.
func (b *Bot) onGuildRoleDelete(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
	if !b.wanted(r.GuildID) {
		return
	}
	role, ok := b.Platform.ForgetRole(r.GuildID, r.RoleID)
	if !ok {
		b.Logger.Warn("deleted role was not cached, restoring with a placeholder", "role", r.RoleID)
		role = platform.Role{ID: r.RoleID, Name: "restored-role"}
	}
	guildID := r.GuildID
	b.submit("role-delete", func(ctx context.Context) {
		b.Engine.ProcessRoleDelete(ctx, guildID, role)
	})
}

func (b *Bot) onChannelCreate(_ *discordgo.Session, c *discordgo.ChannelCreate) {
	if c.Channel == nil || !b.wanted(c.GuildID) {
		return
	}
	ch := discordplatform.ToChannel(c.Channel)
	guildID := c.GuildID
	b.submit("channel-create", func(ctx context.Context) {
		b.Engine.ProcessChannelCreate(ctx, guildID, ch)
	})
}

func (b *Bot) onChannelDelete(_ *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil || !b.wanted(c.GuildID) {
		return
	}
	ch := discordplatform.ToChannel(c.Channel)
	guildID := c.GuildID
	b.submit("channel-delete", func(ctx context.Context) {
		b.Engine.ProcessChannelDelete(ctx, guildID, ch)
	})
}
