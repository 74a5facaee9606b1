// Private room control panel: a message with one button per room operation. Operations that need input open a single-field form; the form must be submitted within the flow window.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/voiceroom"
)

const (
	buttonPrefix = "room:"
	formPrefix   = "roomform:"
)

const (
	OpLock     = "lock"
	OpUnlock   = "unlock"
	OpLimit    = "limit"
	OpRename   = "rename"
	OpAllow    = "allow"
	OpBlock    = "block"
	OpTransfer = "transfer"
)

type form struct {
	title       string
	label       string
	placeholder string
	maxLength   int
}

var forms = map[string]form{
	OpLimit:    {"User limit", "Member limit (0 removes the limit)", "0-99", 2},
	OpRename:   {"Rename room", "New room name", "My room", 100},
	OpAllow:    {"Allow a member", "User ID or mention", "123456789012345678", 32},
	OpBlock:    {"Block a member", "User ID or mention", "123456789012345678", 32},
	OpTransfer: {"Transfer ownership", "User ID or mention of the new owner", "123456789012345678", 32},
}

const Text = "🎛️ **Private Room Panel**\nManage the room you own with the buttons below."

// Panel message posted by the setup command.
func Message() platform.ComponentMessage {
	b := func(op, label string, style platform.ButtonStyle) platform.Button {
		return platform.Button{ID: buttonPrefix + op, Label: label, Style: style}
	}
	return platform.ComponentMessage{
		Text: Text,
		Buttons: [][]platform.Button{
			{
				b(OpLock, "🔒 Lock", platform.ButtonSecondary),
				b(OpUnlock, "🔓 Unlock", platform.ButtonSecondary),
				b(OpLimit, "👥 Limit", platform.ButtonPrimary),
				b(OpRename, "✏️ Rename", platform.ButtonPrimary),
			},
			{
				b(OpAllow, "✅ Allow", platform.ButtonSuccess),
				b(OpBlock, "⛔ Block", platform.ButtonDanger),
				b(OpTransfer, "👑 Transfer", platform.ButtonPrimary),
			},
		},
	}
}

type Panel struct {
	Logger  *slog.Logger
	Control *voiceroom.Control
	Flows   *flow.Store
}

func NewPanel(logger *slog.Logger, control *voiceroom.Control, flows *flow.Store) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{
		Logger:  logger.With("component", "panel"),
		Control: control,
		Flows:   flows,
	}
}

func Handles(customID string) bool {
	return strings.HasPrefix(customID, buttonPrefix) || strings.HasPrefix(customID, formPrefix)
}

func formKey(userID, op string) string {
	return userID + "/" + op
}

func (p *Panel) Handle(ctx context.Context, in platform.Interaction) platform.Response {
	if in.User == nil {
		return platform.Ephemeral("❌ Unknown member.")
	}
	if op, ok := strings.CutPrefix(in.CustomID, formPrefix); ok {
		return p.submit(ctx, in, op)
	}
	op, _ := strings.CutPrefix(in.CustomID, buttonPrefix)
	return p.press(ctx, in, op)
}

func (p *Panel) press(ctx context.Context, in platform.Interaction, op string) platform.Response {
	switch op {
	case OpLock:
		_, err := p.Control.Lock(ctx, in.GuildID, in.User.ID)
		return p.result(op, err, "🔒 Your room is now locked.")
	case OpUnlock:
		_, err := p.Control.Unlock(ctx, in.GuildID, in.User.ID)
		return p.result(op, err, "🔓 Your room is now open to everyone.")
	}
	fm, ok := forms[op]
	if !ok {
		return platform.Ephemeral("❌ Unknown option.")
	}
	// fail early instead of after the member filled in the form
	if _, err := p.Control.OwnedRoom(in.User.ID); err != nil {
		return p.result(op, err, "")
	}
	p.Flows.Begin(&flow.Flow{
		Key:     formKey(in.User.ID, op),
		Kind:    flow.KindRoom,
		GuildID: in.GuildID,
		UserID:  in.User.ID,
		Target:  op,
	})
	return platform.Response{Modal: &platform.Modal{
		ID:          formPrefix + op,
		Title:       fm.title,
		Label:       fm.label,
		Placeholder: fm.placeholder,
		MaxLength:   fm.maxLength,
	}}
}

func (p *Panel) submit(ctx context.Context, in platform.Interaction, op string) platform.Response {
	if _, ok := forms[op]; !ok {
		return platform.Ephemeral("❌ Unknown option.")
	}
	if _, ok := p.Flows.Take(formKey(in.User.ID, op)); !ok {
		return platform.Ephemeral("⌛ This form has expired, press the button again.")
	}
	switch op {
	case OpLimit:
		n, err := p.Control.SetLimit(ctx, in.GuildID, in.User.ID, in.Value)
		if n == 0 {
			return p.result(op, err, "👥 User limit removed.")
		}
		return p.result(op, err, fmt.Sprintf("👥 User limit set to %d.", n))
	case OpRename:
		name, err := p.Control.Rename(ctx, in.GuildID, in.User.ID, in.Value)
		return p.result(op, err, fmt.Sprintf("✏️ Room renamed to **%s**.", name))
	case OpAllow:
		target, err := p.Control.Allow(ctx, in.GuildID, in.User.ID, in.Value)
		return p.result(op, err, fmt.Sprintf("✅ %s can now join your room.", platform.Mention(target)))
	case OpBlock:
		target, err := p.Control.Block(ctx, in.GuildID, in.User.ID, in.Value)
		return p.result(op, err, fmt.Sprintf("⛔ %s can no longer join your room.", platform.Mention(target)))
	default:
		target, err := p.Control.Transfer(ctx, in.GuildID, in.User.ID, in.Value)
		return p.result(op, err, fmt.Sprintf("👑 %s is now the owner of your room.", platform.Mention(target)))
	}
}

func (p *Panel) result(op string, err error, success string) platform.Response {
	switch {
	case err == nil:
		return platform.Ephemeral(success)
	case errors.Is(err, voiceroom.ErrNoRoom):
		return platform.Ephemeral("❌ You need to own a private room first.")
	case errors.Is(err, voiceroom.ErrMalformed):
		return platform.Ephemeral(malformedText(op))
	case errors.Is(err, voiceroom.ErrConflict):
		return platform.Ephemeral("❌ That member already owns another room.")
	case errors.Is(err, voiceroom.ErrNotOccupant):
		return platform.Ephemeral("❌ That member is not in your room.")
	default:
		p.Logger.Warn("room operation failed", "op", op, "err", err)
		return platform.Ephemeral("❌ Something went wrong, please try again.")
	}
}

func malformedText(op string) string {
	switch op {
	case OpLimit:
		return fmt.Sprintf("❌ Enter a number between 0 and %d.", voiceroom.MaxUserLimit)
	case OpRename:
		return "❌ Enter a name between 1 and 100 characters."
	default:
		return "❌ Enter a valid user ID or mention."
	}
}
