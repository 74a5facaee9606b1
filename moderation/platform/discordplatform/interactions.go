package discordplatform

import (
	"context"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// Custom ID of the single text field in every form.
const formFieldID = "value"

// Converts a component click or form submission. Returns false for other interaction kinds (eg, slash commands).
func (p *Platform) ToInteraction(i *discordgo.Interaction) (platform.Interaction, bool) {
	out := platform.Interaction{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
	}
	if i.Member != nil {
		out.User = p.ToMember(i.GuildID, i.Member, i.Member.User)
	} else if i.User != nil {
		out.User = p.ToMember(i.GuildID, nil, i.User)
	}
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		out.CustomID = data.CustomID
		out.Values = data.Values
		if i.Message != nil {
			out.MessageID = i.Message.ID
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		out.CustomID = data.CustomID
		out.Value = formValue(data.Components)
	default:
		return out, false
	}
	return out, true
}

func formValue(comps []discordgo.MessageComponent) string {
	for _, c := range comps {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if ti, ok := inner.(*discordgo.TextInput); ok && ti.CustomID == formFieldID {
				return ti.Value
			}
		}
	}
	return ""
}

func ResponseData(resp platform.Response) *discordgo.InteractionResponse {
	if m := resp.Modal; m != nil {
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: m.ID,
				Title:    m.Title,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    formFieldID,
							Label:       m.Label,
							Style:       discordgo.TextInputShort,
							Placeholder: m.Placeholder,
							Required:    true,
							MaxLength:   m.MaxLength,
						},
					}},
				},
			},
		}
	}
	if resp.Update {
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    resp.Text,
				Components: []discordgo.MessageComponent{},
			},
		}
	}
	data := &discordgo.InteractionResponseData{Content: resp.Text}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

func (p *Platform) Respond(ctx context.Context, i *discordgo.Interaction, resp platform.Response) error {
	return p.Session.InteractionRespond(i, ResponseData(resp), opts(ctx))
}
