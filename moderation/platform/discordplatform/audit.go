package discordplatform

import (
	"context"
	"fmt"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// Recent entries scanned for a matching target.
const auditScanLimit = 5

var auditActions = map[platform.AuditAction]discordgo.AuditLogAction{
	platform.AuditRoleCreate:    discordgo.AuditLogActionRoleCreate,
	platform.AuditRoleDelete:    discordgo.AuditLogActionRoleDelete,
	platform.AuditChannelCreate: discordgo.AuditLogActionChannelCreate,
	platform.AuditChannelDelete: discordgo.AuditLogActionChannelDelete,
	platform.AuditBotAdd:        discordgo.AuditLogActionBotAdd,
}

// With a targetID, only an entry about that target counts; attributing someone else's change would sanction the wrong member.
func (p *Platform) ResolveExecutor(ctx context.Context, guildID string, action platform.AuditAction, targetID string) (*platform.Actor, error) {
	kind, ok := auditActions[action]
	if !ok {
		return nil, fmt.Errorf("unsupported audit action: %s", action)
	}
	log, err := p.Session.GuildAuditLog(guildID, "", "", int(kind), auditScanLimit, opts(ctx))
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	for _, e := range log.AuditLogEntries {
		if targetID != "" && e.TargetID != targetID {
			continue
		}
		actor := &platform.Actor{ID: e.UserID, Tag: e.UserID}
		for _, u := range log.Users {
			if u.ID == e.UserID {
				actor.Tag = u.String()
				actor.Bot = u.Bot
			}
		}
		return actor, nil
	}
	return nil, nil
}
