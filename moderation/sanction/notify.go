package sanction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/platform"
)

const (
	SystemIssuerText = "System / Automatic"
	IndefiniteText   = "Indefinite"
	ExpiryText       = "Your jail time is over; you are now unregistered."
	defaultGuildName = "Server"
)

func issuerLabel(issuerID string) string {
	if issuerID == "" {
		return SystemIssuerText
	}
	return platform.Mention(issuerID)
}

func timeWindow(rec ledger.Record, loc *time.Location) (string, string) {
	start := ledger.FormatLocal(rec.StartAt, loc)
	end := IndefiniteText
	if rec.EndAt != nil {
		end = ledger.FormatLocal(*rec.EndAt, loc)
	}
	return start, end
}

// Direct message sent to a sanctioned member.
func DirectMessageText(guildName string, rec ledger.Record, loc *time.Location) string {
	if guildName == "" {
		guildName = defaultGuildName
	}
	start, end := timeWindow(rec, loc)
	return strings.Join([]string{
		"❗️ Hello,",
		"You have been sanctioned for not following the rules of our server.",
		"If you think this was a mistake, write in the sanctioned text channel or wait for a moderator in the sanctioned voice channel.",
		"",
		fmt.Sprintf("**Server**: *%s*", guildName),
		fmt.Sprintf("**Issued by**: *%s*", issuerLabel(rec.IssuerID)),
		fmt.Sprintf("**Reason**: *%s*", rec.Reason),
		fmt.Sprintf("**Duration**: *%s - %s*", start, end),
	}, "\n")
}

// Line posted to the moderation log channel.
func LogText(rec ledger.Record, loc *time.Location) string {
	start, end := timeWindow(rec, loc)
	return strings.Join([]string{
		"⚠️ **SANCTION**",
		fmt.Sprintf("Member: %s (%s)", platform.Mention(rec.SubjectID), rec.SubjectID),
		fmt.Sprintf("Issued by: %s", issuerLabel(rec.IssuerID)),
		fmt.Sprintf("Reason: %s", rec.Reason),
		fmt.Sprintf("Start: %s", start),
		fmt.Sprintf("End: %s", end),
	}, "\n")
}

// Best-effort delivery of the DM and the mod-log line. Never fails.
func (s *Scheduler) notify(ctx context.Context, logger *slog.Logger, guildID string, rec ledger.Record) {
	guildName, err := s.Platform.GuildName(ctx, guildID)
	if err != nil {
		platform.CallErrors.WithLabelValues("GuildName").Inc()
		logger.Debug("failed to resolve guild name", "err", err)
	}

	mem, err := s.Platform.FetchMember(ctx, guildID, rec.SubjectID)
	if err != nil {
		platform.CallErrors.WithLabelValues("FetchMember").Inc()
		logger.Debug("failed to fetch sanctioned member", "err", err)
	}
	// members who already left (ban, kick) are still messaged; only bots are skipped
	if mem == nil || !mem.Bot {
		if err := s.Platform.SendDirectMessage(ctx, rec.SubjectID, DirectMessageText(guildName, rec, s.Config.Location)); err != nil {
			platform.CallErrors.WithLabelValues("SendDirectMessage").Inc()
			logger.Debug("failed to send sanction DM", "err", err)
		}
	}

	if s.Config.LogChannelID != "" {
		if err := s.Platform.SendChannelMessage(ctx, s.Config.LogChannelID, LogText(rec, s.Config.Location)); err != nil {
			platform.CallErrors.WithLabelValues("SendChannelMessage").Inc()
			logger.Warn("failed to post sanction to log channel", "err", err)
		}
	}
}
