// Contracts for the chat platform the moderation engine drives.
//
// The engine treats the platform as an unreliable, best-effort remote service: every call may fail (missing permissions, network trouble, entity already gone) and callers log and continue. Implementations live in sub-packages (see discordplatform); Mock is an in-memory implementation for tests.
package platform

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type Member struct {
	ID       string
	Username string
	Bot      bool
	Roles    []string
	// guild owner, or holds the Administrator permission
	Admin bool
	// guild-wide permissions granted by the member's roles (and @everyone)
	Perms Permission
}

func (m *Member) Can(p Permission) bool {
	return m != nil && (m.Admin || m.Perms&p == p)
}

func (m *Member) HasRole(roleID string) bool {
	if m == nil || roleID == "" {
		return false
	}
	return slices.Contains(m.Roles, roleID)
}

func (m *Member) HasAnyRole(roleIDs []string) bool {
	for _, id := range roleIDs {
		if m.HasRole(id) {
			return true
		}
	}
	return false
}

func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// Accepts a bare snowflake or a user mention ("<@123>", "<@!123>").
func ParseUserID(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	}
	if s == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return "", false
	}
	return s, true
}

type ChannelKind int

const (
	ChannelText ChannelKind = iota
	ChannelVoice
	ChannelCategory
)

type Permission int64

const (
	PermConnect Permission = 1 << iota
	PermManageChannels
	PermViewChannel
	PermSendMessages
	PermManageMessages
)

type OverwriteTarget int

const (
	TargetRole OverwriteTarget = iota
	TargetMember
)

// Permission overwrite on a channel. When applied as an edit, bits in Allow become allowed, bits in Deny become denied, and all other bits keep their current state.
type Overwrite struct {
	TargetID string
	Target   OverwriteTarget
	Allow    Permission
	Deny     Permission
}

type Channel struct {
	ID         string
	Name       string
	ParentID   string
	Kind       ChannelKind
	UserLimit  int
	Overwrites []Overwrite
}

type ChannelSpec struct {
	Name       string
	Kind       ChannelKind
	ParentID   string
	UserLimit  int
	Overwrites []Overwrite
	Reason     string
}

type Role struct {
	ID          string
	Name        string
	Color       int
	Hoist       bool
	Mentionable bool
	Permissions int64
	Position    int
}

type AuditAction int

const (
	AuditRoleCreate AuditAction = iota
	AuditRoleDelete
	AuditChannelCreate
	AuditChannelDelete
	AuditBotAdd
)

func (a AuditAction) String() string {
	switch a {
	case AuditRoleCreate:
		return "role-create"
	case AuditRoleDelete:
		return "role-delete"
	case AuditChannelCreate:
		return "channel-create"
	case AuditChannelDelete:
		return "channel-delete"
	case AuditBotAdd:
		return "bot-add"
	default:
		return "unknown"
	}
}

// The account responsible for an audited change.
type Actor struct {
	ID  string
	Tag string
	Bot bool
}

type Members interface {
	// Returns nil (and no error) if the member is not in the guild.
	FetchMember(ctx context.Context, guildID, memberID string) (*Member, error)
	// Replaces the member's entire role set.
	SetRoles(ctx context.Context, guildID, memberID string, roleIDs []string) error
	AddRole(ctx context.Context, guildID, memberID, roleID string) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID string) error
	Ban(ctx context.Context, guildID, memberID, reason string) error
	Kick(ctx context.Context, guildID, memberID, reason string) error
	SetNickname(ctx context.Context, guildID, memberID, nickname string) error
	ListMembers(ctx context.Context, guildID string) ([]*Member, error)
}

type Channels interface {
	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// Live existence check; stale cache entries must not report true.
	ChannelExists(ctx context.Context, guildID, channelID string) (bool, error)
	SetChannelName(ctx context.Context, channelID, name string) error
	// Zero means unlimited.
	SetChannelUserLimit(ctx context.Context, channelID string, limit int) error
	EditOverwrite(ctx context.Context, channelID string, ow Overwrite) error
}

type Roles interface {
	CreateRole(ctx context.Context, guildID string, spec Role) (*Role, error)
	DeleteRole(ctx context.Context, guildID, roleID string) error
}

type Voice interface {
	// Members currently connected to the voice channel, in platform enumeration order.
	Occupants(ctx context.Context, guildID, channelID string) ([]string, error)
	// Empty string if the member is not connected to voice.
	VoiceChannelOf(ctx context.Context, guildID, memberID string) (string, error)
	MoveMember(ctx context.Context, guildID, memberID, channelID string) error
	// Connects the bot itself to a voice channel, replacing any connection it has in the guild.
	JoinVoice(ctx context.Context, guildID, channelID string) error
	// Disconnects the bot from voice in the guild. Returns false if it was not connected.
	LeaveVoice(ctx context.Context, guildID string) (bool, error)
}

type Messenger interface {
	SendDirectMessage(ctx context.Context, memberID, text string) error
	SendChannelMessage(ctx context.Context, channelID, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// Deletes the last limit messages (bulk where the platform allows, one by one otherwise); returns how many were removed.
	PurgeMessages(ctx context.Context, channelID string, limit int) (int, error)
	// Returns the new message's ID.
	SendComponents(ctx context.Context, channelID string, msg ComponentMessage) (string, error)
	EditComponents(ctx context.Context, channelID, messageID string, msg ComponentMessage) error
}

type Guilds interface {
	GuildName(ctx context.Context, guildID string) (string, error)
}

type Audit interface {
	// Most recent actor responsible for the given action (optionally matching targetID). Returns nil if the audit log has no matching entry.
	ResolveExecutor(ctx context.Context, guildID string, action AuditAction, targetID string) (*Actor, error)
}

type Platform interface {
	Members
	Channels
	Roles
	Voice
	Messenger
	Guilds
	Audit
}
