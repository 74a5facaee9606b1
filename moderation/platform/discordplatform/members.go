package discordplatform

import (
	"context"
	"fmt"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// Page size for member listing (Discord's maximum).
const memberPageSize = 1000

func (p *Platform) FetchMember(ctx context.Context, guildID, memberID string) (*platform.Member, error) {
	m, err := p.Session.GuildMember(guildID, memberID, opts(ctx))
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching member: %w", err)
	}
	return p.ToMember(guildID, m, m.User), nil
}

func (p *Platform) SetRoles(ctx context.Context, guildID, memberID string, roleIDs []string) error {
	roles := append([]string{}, roleIDs...)
	if _, err := p.Session.GuildMemberEdit(guildID, memberID, &discordgo.GuildMemberParams{Roles: &roles}, opts(ctx)); err != nil {
		return fmt.Errorf("setting roles: %w", err)
	}
	return nil
}

func (p *Platform) AddRole(ctx context.Context, guildID, memberID, roleID string) error {
	return p.Session.GuildMemberRoleAdd(guildID, memberID, roleID, opts(ctx))
}

func (p *Platform) RemoveRole(ctx context.Context, guildID, memberID, roleID string) error {
	return p.Session.GuildMemberRoleRemove(guildID, memberID, roleID, opts(ctx))
}

func (p *Platform) Ban(ctx context.Context, guildID, memberID, reason string) error {
	return p.Session.GuildBanCreateWithReason(guildID, memberID, reason, 0, opts(ctx))
}

func (p *Platform) Kick(ctx context.Context, guildID, memberID, reason string) error {
	return p.Session.GuildMemberDeleteWithReason(guildID, memberID, reason, opts(ctx))
}

func (p *Platform) SetNickname(ctx context.Context, guildID, memberID, nickname string) error {
	return p.Session.GuildMemberNickname(guildID, memberID, nickname, opts(ctx))
}

func (p *Platform) ListMembers(ctx context.Context, guildID string) ([]*platform.Member, error) {
	var out []*platform.Member
	after := ""
	for {
		page, err := p.Session.GuildMembers(guildID, after, memberPageSize, opts(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing members: %w", err)
		}
		for _, m := range page {
			if mem := p.ToMember(guildID, m, m.User); mem != nil {
				out = append(out, mem)
			}
		}
		if len(page) < memberPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (p *Platform) GuildName(ctx context.Context, guildID string) (string, error) {
	if g, err := p.Session.State.Guild(guildID); err == nil {
		return g.Name, nil
	}
	g, err := p.Session.Guild(guildID, opts(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching guild: %w", err)
	}
	return g.Name, nil
}

func (p *Platform) CreateRole(ctx context.Context, guildID string, spec platform.Role) (*platform.Role, error) {
	params := &discordgo.RoleParams{
		Name:        spec.Name,
		Color:       &spec.Color,
		Hoist:       &spec.Hoist,
		Permissions: &spec.Permissions,
		Mentionable: &spec.Mentionable,
	}
	r, err := p.Session.GuildRoleCreate(guildID, params, opts(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating role: %w", err)
	}
	out := ToRole(r)
	return &out, nil
}

func (p *Platform) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return p.Session.GuildRoleDelete(guildID, roleID, opts(ctx))
}
