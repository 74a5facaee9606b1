// Applies sanctions (role mutation, ledger entry, notification) and reverses timed sanctions when they expire.
package sanction

import (
	"context"
	"log/slog"
	"time"

	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/timers"
)

// Subset of the platform which the scheduler drives.
type Platform interface {
	platform.Members
	platform.Messenger
	platform.Guilds
}

type Config struct {
	// the single role a sanctioned member is left with
	SanctionedRoleID string
	// role applied when a sanction ends
	UnregisteredRoleID string
	// members holding this role are never sanctioned by protective subsystems
	ExemptRoleID string
	// moderation log channel (optional)
	LogChannelID string
	// zone used when formatting times for members
	Location *time.Location
}

// Not safe for concurrent use: all methods, and the expiry callbacks armed through Timers, run on the control thread.
type Scheduler struct {
	Logger   *slog.Logger
	Platform Platform
	Ledger   ledger.Ledger
	Timers   *timers.Set
	Config   Config
}

func NewScheduler(logger *slog.Logger, p Platform, l ledger.Ledger, t *timers.Set, config Config) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Scheduler{
		Logger:   logger.With("component", "sanction"),
		Platform: p,
		Ledger:   l,
		Timers:   t,
		Config:   config,
	}
}

// Sanctions a member: replaces all of their roles with the sanctioned role, records the sanction, and notifies them. A positive duration arms an expiry timer, replacing any earlier timer for the same member.
//
// Platform failures are logged and tolerated; the ledger record is always kept. Exemption is not checked here: a moderator sanctioning someone directly is never blocked.
func (s *Scheduler) Apply(ctx context.Context, guildID, subjectID, issuerID, reason string, duration time.Duration) ledger.Record {
	logger := s.Logger.With("guild", guildID, "subject", subjectID, "issuer", issuerID)

	if err := s.Platform.SetRoles(ctx, guildID, subjectID, []string{s.Config.SanctionedRoleID}); err != nil {
		platform.CallErrors.WithLabelValues("SetRoles").Inc()
		logger.Warn("failed to apply sanctioned role", "err", err)
	}

	rec := s.Ledger.Record(subjectID, issuerID, reason, duration)
	// last sanction wins: older active records are superseded
	s.Ledger.Retire(subjectID, rec.Seq)

	kind := "manual"
	if issuerID == "" {
		kind = "automatic"
	}
	sanctionsApplied.WithLabelValues(kind).Inc()

	s.notify(ctx, logger, guildID, rec)

	if duration > 0 {
		seq := rec.Seq
		s.Timers.Arm(subjectID, duration, func() {
			s.expire(context.Background(), guildID, subjectID, seq)
		})
	} else {
		s.Timers.Cancel(subjectID)
	}
	logger.Info("sanction applied", "seq", rec.Seq, "reason", reason, "duration", duration)
	return rec
}

// Sanction issued by a protective subsystem on behalf of the system. Skips members who have left or hold the exempt role; the returned bool reports whether a sanction was applied.
func (s *Scheduler) ApplyProtective(ctx context.Context, guildID, subjectID, reason string, duration time.Duration) (ledger.Record, bool) {
	mem, err := s.Platform.FetchMember(ctx, guildID, subjectID)
	if err != nil {
		platform.CallErrors.WithLabelValues("FetchMember").Inc()
		s.Logger.Warn("failed to fetch member for protective sanction", "err", err, "subject", subjectID)
		return ledger.Record{}, false
	}
	if mem == nil {
		return ledger.Record{}, false
	}
	if s.IsExempt(mem) {
		exemptSkips.Inc()
		s.Logger.Info("member is exempt, skipping protective sanction", "subject", subjectID, "reason", reason)
		return ledger.Record{}, false
	}
	return s.Apply(ctx, guildID, subjectID, "", reason, duration), true
}

func (s *Scheduler) IsExempt(mem *platform.Member) bool {
	return mem.HasRole(s.Config.ExemptRoleID)
}

// Records an action which does not change roles (eg, a ban or kick) and sends the usual notifications.
func (s *Scheduler) RecordAction(ctx context.Context, guildID, subjectID, issuerID, reason string) ledger.Record {
	logger := s.Logger.With("guild", guildID, "subject", subjectID, "issuer", issuerID)
	rec := s.Ledger.Record(subjectID, issuerID, reason, 0)
	sanctionsApplied.WithLabelValues("action").Inc()
	s.notify(ctx, logger, guildID, rec)
	return rec
}

// Manually ends any sanction on the member: cancels the expiry timer, resets roles to the unregistered role, and deactivates every ledger record for the member.
func (s *Scheduler) Release(ctx context.Context, guildID, subjectID string) {
	logger := s.Logger.With("guild", guildID, "subject", subjectID)
	s.Timers.Cancel(subjectID)
	if err := s.Platform.SetRoles(ctx, guildID, subjectID, []string{s.Config.UnregisteredRoleID}); err != nil {
		platform.CallErrors.WithLabelValues("SetRoles").Inc()
		logger.Warn("failed to reset roles on release", "err", err)
	}
	n := s.Ledger.DeactivateAll(subjectID)
	sanctionsReleased.Inc()
	logger.Info("sanction released", "deactivated", n)
}

// Expiry callback. Runs on the control thread, possibly long after the sanction was reversed by other means, so current state is re-checked before anything is mutated.
func (s *Scheduler) expire(ctx context.Context, guildID, subjectID string, seq uint64) {
	logger := s.Logger.With("guild", guildID, "subject", subjectID, "seq", seq)
	defer s.Ledger.SweepExpired(subjectID)

	if !s.Ledger.IsActive(subjectID, seq) {
		staleTimerFires.Inc()
		logger.Debug("expiry timer fired for inactive sanction, ignoring")
		return
	}

	mem, err := s.Platform.FetchMember(ctx, guildID, subjectID)
	if err != nil {
		platform.CallErrors.WithLabelValues("FetchMember").Inc()
		logger.Warn("failed to fetch member on sanction expiry", "err", err)
		return
	}
	if mem == nil || !mem.HasRole(s.Config.SanctionedRoleID) {
		logger.Info("sanction expired, member no longer holds sanctioned role")
		return
	}

	if err := s.Platform.SetRoles(ctx, guildID, subjectID, []string{s.Config.UnregisteredRoleID}); err != nil {
		platform.CallErrors.WithLabelValues("SetRoles").Inc()
		logger.Warn("failed to reset roles on sanction expiry", "err", err)
		return
	}
	sanctionsExpired.Inc()
	if !mem.Bot {
		if err := s.Platform.SendDirectMessage(ctx, subjectID, ExpiryText); err != nil {
			platform.CallErrors.WithLabelValues("SendDirectMessage").Inc()
			logger.Debug("failed to send expiry DM", "err", err)
		}
	}
	logger.Info("sanction expired")
}
