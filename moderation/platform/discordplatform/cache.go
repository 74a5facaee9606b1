package discordplatform

import (
	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// Registers the gateway handlers that keep role and owner snapshots current. Must be called before the session opens.
func (p *Platform) TrackState() {
	p.Session.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.owners[g.ID] = g.OwnerID
		roles := make(map[string]platform.Role, len(g.Roles))
		for _, r := range g.Roles {
			roles[r.ID] = ToRole(r)
		}
		p.roles[g.ID] = roles
	})
	p.Session.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildUpdate) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.owners[g.ID] = g.OwnerID
	})
	p.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
		p.rememberRole(r.GuildID, r.Role)
	})
	p.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleUpdate) {
		p.rememberRole(r.GuildID, r.Role)
	})
}

func (p *Platform) rememberRole(guildID string, r *discordgo.Role) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	roles, ok := p.roles[guildID]
	if !ok {
		roles = make(map[string]platform.Role)
		p.roles[guildID] = roles
	}
	roles[r.ID] = ToRole(r)
}

// Last known definition of a role, and forgets it. Used when a role delete event arrives.
func (p *Platform) ForgetRole(guildID, roleID string) (platform.Role, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.roles[guildID][roleID]
	if ok {
		delete(p.roles[guildID], roleID)
	}
	return r, ok
}

// Union of the cached permissions of the given roles and the guild's @everyone role, which shares the guild ID.
func (p *Platform) rolePerms(guildID string, roleIDs []string) platform.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	roles := p.roles[guildID]
	bits := roles[guildID].Permissions
	for _, id := range roleIDs {
		bits |= roles[id].Permissions
	}
	return fromDiscordPerms(bits)
}

func (p *Platform) isAdmin(guildID string, m *discordgo.Member) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.User != nil && p.owners[guildID] == m.User.ID {
		return true
	}
	for _, id := range m.Roles {
		if r, ok := p.roles[guildID][id]; ok && r.Permissions&discordgo.PermissionAdministrator != 0 {
			return true
		}
	}
	return false
}
