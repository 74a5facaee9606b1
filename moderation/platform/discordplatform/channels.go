package discordplatform

import (
	"context"
	"fmt"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

func (p *Platform) CreateChannel(ctx context.Context, guildID string, spec platform.ChannelSpec) (*platform.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:      spec.Name,
		Type:      channelType(spec.Kind),
		ParentID:  spec.ParentID,
		UserLimit: spec.UserLimit,
	}
	for _, ow := range spec.Overwrites {
		data.PermissionOverwrites = append(data.PermissionOverwrites, &discordgo.PermissionOverwrite{
			ID:    ow.TargetID,
			Type:  overwriteType(ow.Target),
			Allow: toDiscordPerms(ow.Allow),
			Deny:  toDiscordPerms(ow.Deny),
		})
	}
	ro := []discordgo.RequestOption{opts(ctx)}
	if spec.Reason != "" {
		ro = append(ro, discordgo.WithAuditLogReason(spec.Reason))
	}
	ch, err := p.Session.GuildChannelCreateComplex(guildID, data, ro...)
	if err != nil {
		return nil, fmt.Errorf("creating channel: %w", err)
	}
	out := ToChannel(ch)
	return &out, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := p.Session.ChannelDelete(channelID, opts(ctx)); err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	return nil
}

// Always asks the REST API; gateway state can lag behind a deletion.
func (p *Platform) ChannelExists(ctx context.Context, guildID, channelID string) (bool, error) {
	ch, err := p.Session.Channel(channelID, opts(ctx))
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking channel: %w", err)
	}
	return ch.GuildID == guildID, nil
}

func (p *Platform) SetChannelName(ctx context.Context, channelID, name string) error {
	if _, err := p.Session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, opts(ctx)); err != nil {
		return fmt.Errorf("renaming channel: %w", err)
	}
	return nil
}

func (p *Platform) SetChannelUserLimit(ctx context.Context, channelID string, limit int) error {
	// ChannelEdit omits a zero user_limit, which is how "unlimited" is spelled
	endpoint := discordgo.EndpointChannel(channelID)
	if _, err := p.Session.RequestWithBucketID("PATCH", endpoint, map[string]int{"user_limit": limit}, endpoint, opts(ctx)); err != nil {
		return fmt.Errorf("setting user limit: %w", err)
	}
	return nil
}

// Discord replaces an overwrite wholesale, so the edit is merged into the current one first. The channel is read over REST; gateway state may not yet reflect an edit made a moment ago.
func (p *Platform) EditOverwrite(ctx context.Context, channelID string, ow platform.Overwrite) error {
	ch, err := p.Session.Channel(channelID, opts(ctx))
	if err != nil {
		return fmt.Errorf("fetching channel: %w", err)
	}
	var allow, deny int64
	for _, cur := range ch.PermissionOverwrites {
		if cur.ID == ow.TargetID {
			allow, deny = cur.Allow, cur.Deny
		}
	}
	editAllow, editDeny := toDiscordPerms(ow.Allow), toDiscordPerms(ow.Deny)
	allow = (allow &^ editDeny) | editAllow
	deny = (deny &^ editAllow) | editDeny
	if err := p.Session.ChannelPermissionSet(channelID, ow.TargetID, overwriteType(ow.Target), allow, deny, opts(ctx)); err != nil {
		return fmt.Errorf("editing overwrite: %w", err)
	}
	return nil
}
