package discordplatform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Read from gateway state, in the order Discord delivered the voice states.
func (p *Platform) Occupants(ctx context.Context, guildID, channelID string) ([]string, error) {
	st := p.Session.State
	g, err := st.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild state: %w", err)
	}
	st.RLock()
	defer st.RUnlock()
	var out []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			out = append(out, vs.UserID)
		}
	}
	return out, nil
}

func (p *Platform) VoiceChannelOf(ctx context.Context, guildID, memberID string) (string, error) {
	vs, err := p.Session.State.VoiceState(guildID, memberID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("voice state: %w", err)
	}
	return vs.ChannelID, nil
}

func (p *Platform) MoveMember(ctx context.Context, guildID, memberID, channelID string) error {
	if err := p.Session.GuildMemberMove(guildID, memberID, &channelID, opts(ctx)); err != nil {
		return fmt.Errorf("moving member: %w", err)
	}
	return nil
}

// Blocks until the voice connection is ready (discordgo waits up to 10 seconds). The bot joins
// muted and deafened; it only keeps the channel company.
func (p *Platform) JoinVoice(ctx context.Context, guildID, channelID string) error {
	if _, err := p.Session.ChannelVoiceJoin(guildID, channelID, true, true); err != nil {
		return fmt.Errorf("joining voice channel: %w", err)
	}
	return nil
}

func (p *Platform) LeaveVoice(ctx context.Context, guildID string) (bool, error) {
	p.Session.RLock()
	vc, ok := p.Session.VoiceConnections[guildID]
	p.Session.RUnlock()
	if !ok {
		return false, nil
	}
	if err := vc.Disconnect(); err != nil {
		return true, fmt.Errorf("leaving voice channel: %w", err)
	}
	return true, nil
}
