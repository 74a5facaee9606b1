package command

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/platform"
)

const JailSelectID = "jail_select"

type JailChoice struct {
	Value       string
	Label       string
	Description string
	// zero is indefinite
	Duration time.Duration
}

const day = 24 * time.Hour

var JailChoices = []JailChoice{
	{Value: "indefinite", Label: "| OTHER |", Description: "Indefinite", Duration: 0},
	{Value: "1 week", Label: "| DDK/MDK |", Description: "7 days", Duration: 7 * day},
	{Value: "3 days", Label: "| HARASSMENT |", Description: "3 days", Duration: 3 * day},
	{Value: "1 day", Label: "| SEVERE INSULT |", Description: "1 day", Duration: day},
	{Value: "12 hours", Label: "| RULE VIOLATION |", Description: "12 hours", Duration: 12 * time.Hour},
	{Value: "3 hours", Label: "| PROVOCATION/TROLL |", Description: "3 hours", Duration: 3 * time.Hour},
}

func jailChoice(value string) (JailChoice, bool) {
	i := slices.IndexFunc(JailChoices, func(c JailChoice) bool { return c.Value == value })
	if i < 0 {
		return JailChoice{}, false
	}
	return JailChoices[i], true
}

func JailReason(c JailChoice) string {
	return "Jail: " + c.Value
}

func (h *Handler) jail(ctx context.Context, msg Message, args []string) error {
	target, err := h.target(ctx, msg.GuildID, args, usageJail)
	if err != nil {
		return err
	}
	opts := make([]platform.SelectOption, 0, len(JailChoices))
	for _, c := range JailChoices {
		opts = append(opts, platform.SelectOption{Label: c.Label, Value: c.Value, Description: c.Description})
	}
	msgID, err := h.Platform.SendComponents(ctx, msg.ChannelID, platform.ComponentMessage{
		Text: fmt.Sprintf("Choose a jail duration for %s:", platform.Mention(target.ID)),
		Select: &platform.Select{
			ID:          JailSelectID,
			Placeholder: "Choose a jail duration...",
			Options:     opts,
		},
	})
	if err != nil {
		platform.CallErrors.WithLabelValues("SendComponents").Inc()
		return fmt.Errorf("sending jail menu: %w", err)
	}
	h.Flows.Begin(&flow.Flow{
		Key:       msgID,
		Kind:      flow.KindJail,
		GuildID:   msg.GuildID,
		UserID:    msg.Author.ID,
		Target:    target.ID,
		ChannelID: msg.ChannelID,
		MessageID: msgID,
	})
	return nil
}

// Handles a pick from the jail duration menu.
func (h *Handler) CompleteJail(ctx context.Context, in platform.Interaction) platform.Response {
	f, ok := h.Flows.Peek(in.MessageID)
	if !ok || f.Kind != flow.KindJail {
		return platform.Ephemeral("⌛ This menu has expired.")
	}
	if in.User == nil || in.User.ID != f.UserID {
		return platform.Ephemeral("❌ This menu is not for you.")
	}
	if len(in.Values) != 1 {
		return platform.Ephemeral("❌ Pick one jail duration.")
	}
	choice, ok := jailChoice(in.Values[0])
	if !ok {
		return platform.Ephemeral("❌ Pick one of the listed jail durations.")
	}
	if _, ok := h.Flows.Take(in.MessageID); !ok {
		return platform.Ephemeral("⌛ This menu has expired.")
	}

	h.Sanctions.Apply(ctx, f.GuildID, f.Target, f.UserID, JailReason(choice), choice.Duration)
	commandsTotal.WithLabelValues("jail", "completed").Inc()
	return platform.Response{
		Update: true,
		Text:   fmt.Sprintf("%s has been jailed.\n✅ Duration: %s", platform.Mention(f.Target), choice.Value),
	}
}
