package discordplatform

import (
	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

func ToRole(r *discordgo.Role) platform.Role {
	return platform.Role{
		ID:          r.ID,
		Name:        r.Name,
		Color:       r.Color,
		Hoist:       r.Hoist,
		Mentionable: r.Mentionable,
		Permissions: r.Permissions,
		Position:    r.Position,
	}
}

// Converts a guild member. The member object in message events carries no user, so the author is passed separately.
func (p *Platform) ToMember(guildID string, m *discordgo.Member, u *discordgo.User) *platform.Member {
	if u == nil && m != nil {
		u = m.User
	}
	if u == nil {
		return nil
	}
	out := &platform.Member{
		ID:       u.ID,
		Username: u.Username,
		Bot:      u.Bot,
	}
	if m != nil {
		out.Roles = append([]string(nil), m.Roles...)
		withUser := *m
		withUser.User = u
		out.Admin = p.isAdmin(guildID, &withUser)
		out.Perms = p.rolePerms(guildID, m.Roles)
	}
	return out
}

var channelKinds = map[discordgo.ChannelType]platform.ChannelKind{
	discordgo.ChannelTypeGuildText:     platform.ChannelText,
	discordgo.ChannelTypeGuildVoice:    platform.ChannelVoice,
	discordgo.ChannelTypeGuildCategory: platform.ChannelCategory,
}

func channelType(k platform.ChannelKind) discordgo.ChannelType {
	for t, kind := range channelKinds {
		if kind == k {
			return t
		}
	}
	return discordgo.ChannelTypeGuildText
}

var permissions = []struct {
	ours   platform.Permission
	theirs int64
}{
	{platform.PermConnect, discordgo.PermissionVoiceConnect},
	{platform.PermManageChannels, discordgo.PermissionManageChannels},
	{platform.PermViewChannel, discordgo.PermissionViewChannel},
	{platform.PermSendMessages, discordgo.PermissionSendMessages},
	{platform.PermManageMessages, discordgo.PermissionManageMessages},
}

func toDiscordPerms(p platform.Permission) int64 {
	var out int64
	for _, m := range permissions {
		if p&m.ours != 0 {
			out |= m.theirs
		}
	}
	return out
}

func fromDiscordPerms(p int64) platform.Permission {
	var out platform.Permission
	for _, m := range permissions {
		if p&m.theirs != 0 {
			out |= m.ours
		}
	}
	return out
}

func overwriteType(t platform.OverwriteTarget) discordgo.PermissionOverwriteType {
	if t == platform.TargetMember {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

func ToChannel(ch *discordgo.Channel) platform.Channel {
	out := platform.Channel{
		ID:        ch.ID,
		Name:      ch.Name,
		ParentID:  ch.ParentID,
		Kind:      channelKinds[ch.Type],
		UserLimit: ch.UserLimit,
	}
	for _, ow := range ch.PermissionOverwrites {
		target := platform.TargetRole
		if ow.Type == discordgo.PermissionOverwriteTypeMember {
			target = platform.TargetMember
		}
		out.Overwrites = append(out.Overwrites, platform.Overwrite{
			TargetID: ow.ID,
			Target:   target,
			Allow:    fromDiscordPerms(ow.Allow),
			Deny:     fromDiscordPerms(ow.Deny),
		})
	}
	return out
}

var buttonStyles = map[platform.ButtonStyle]discordgo.ButtonStyle{
	platform.ButtonPrimary:   discordgo.PrimaryButton,
	platform.ButtonSecondary: discordgo.SecondaryButton,
	platform.ButtonSuccess:   discordgo.SuccessButton,
	platform.ButtonDanger:    discordgo.DangerButton,
}

func components(msg platform.ComponentMessage) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	if msg.Select != nil {
		menu := discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    msg.Select.ID,
			Placeholder: msg.Select.Placeholder,
		}
		for _, o := range msg.Select.Options {
			menu.Options = append(menu.Options, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
	}
	for _, row := range msg.Buttons {
		var buttons []discordgo.MessageComponent
		for _, b := range row {
			buttons = append(buttons, discordgo.Button{CustomID: b.ID, Label: b.Label, Style: buttonStyles[b.Style]})
		}
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}
	return rows
}
