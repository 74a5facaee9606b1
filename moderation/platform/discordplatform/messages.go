package discordplatform

import (
	"context"
	"fmt"
	"time"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// Discord refuses to bulk delete messages older than this.
const bulkDeleteMaxAge = 14 * 24 * time.Hour

func (p *Platform) SendDirectMessage(ctx context.Context, memberID, text string) error {
	if err := p.dmLimiter.Wait(ctx); err != nil {
		return err
	}
	ch, err := p.Session.UserChannelCreate(memberID, opts(ctx))
	if err != nil {
		return fmt.Errorf("opening DM channel: %w", err)
	}
	if _, err := p.Session.ChannelMessageSend(ch.ID, text, opts(ctx)); err != nil {
		return fmt.Errorf("sending DM: %w", err)
	}
	return nil
}

func (p *Platform) SendChannelMessage(ctx context.Context, channelID, text string) error {
	if _, err := p.Session.ChannelMessageSend(channelID, text, opts(ctx)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return p.Session.ChannelMessageDelete(channelID, messageID, opts(ctx))
}

// Recent messages go in one bulk delete; older ones, which Discord refuses to bulk delete, are removed one at a time.
func (p *Platform) PurgeMessages(ctx context.Context, channelID string, limit int) (int, error) {
	msgs, err := p.Session.ChannelMessages(channelID, limit, "", "", "", opts(ctx))
	if err != nil {
		return 0, fmt.Errorf("listing messages: %w", err)
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	recent, old := partitionByAge(ids, time.Now().Add(-bulkDeleteMaxAge))

	deleted := 0
	switch len(recent) {
	case 0:
	case 1:
		// bulk delete wants at least two
		if err := p.Session.ChannelMessageDelete(channelID, recent[0], opts(ctx)); err != nil {
			return 0, fmt.Errorf("deleting message: %w", err)
		}
		deleted++
	default:
		if err := p.Session.ChannelMessagesBulkDelete(channelID, recent, opts(ctx)); err != nil {
			return 0, fmt.Errorf("bulk deleting: %w", err)
		}
		deleted += len(recent)
	}
	for _, id := range old {
		if err := p.Session.ChannelMessageDelete(channelID, id, opts(ctx)); err != nil {
			p.Logger.Debug("failed to delete old message", "err", err, "channel", channelID, "message", id)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Splits message IDs by whether their snowflake time is after cutoff. IDs which don't parse count as old.
func partitionByAge(ids []string, cutoff time.Time) (recent, old []string) {
	for _, id := range ids {
		if ts, err := discordgo.SnowflakeTimestamp(id); err == nil && ts.After(cutoff) {
			recent = append(recent, id)
		} else {
			old = append(old, id)
		}
	}
	return recent, old
}

func (p *Platform) SendComponents(ctx context.Context, channelID string, msg platform.ComponentMessage) (string, error) {
	m, err := p.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Text,
		Components: components(msg),
	}, opts(ctx))
	if err != nil {
		return "", fmt.Errorf("sending components: %w", err)
	}
	return m.ID, nil
}

func (p *Platform) EditComponents(ctx context.Context, channelID, messageID string, msg platform.ComponentMessage) error {
	comps := components(msg)
	edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(msg.Text)
	edit.Components = &comps
	if _, err := p.Session.ChannelMessageEditComplex(edit, opts(ctx)); err != nil {
		return fmt.Errorf("editing components: %w", err)
	}
	return nil
}
