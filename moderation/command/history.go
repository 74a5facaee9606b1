package command

import (
	"context"
	"fmt"

	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/platform"
)

// Anyone may look up sanction history; without an argument it is the author's own.
func (h *Handler) history(ctx context.Context, msg Message, args []string) error {
	subject := msg.Author.ID
	if len(args) > 0 {
		id, ok := platform.ParseUserID(args[0])
		if !ok {
			return &usageError{usageHistory}
		}
		subject = id
	}
	h.Ledger.SweepExpired(subject)
	records := h.Ledger.History(subject)
	if len(records) == 0 {
		h.reply(ctx, msg, ledger.NoSanctionsText)
		return nil
	}
	header := "Your sanction history:"
	if subject != msg.Author.ID {
		header = fmt.Sprintf("Sanction history of %s:", platform.Mention(subject))
	}
	h.reply(ctx, msg, header+"\n"+ledger.Render(records, h.Config.Location))
	return nil
}
