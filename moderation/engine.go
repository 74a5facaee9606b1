package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/avengersguard/guard/moderation/clock"
	"github.com/avengersguard/guard/moderation/command"
	"github.com/avengersguard/guard/moderation/dispatch"
	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/guard"
	"github.com/avengersguard/guard/moderation/keyword"
	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/panel"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/sanction"
	"github.com/avengersguard/guard/moderation/timers"
	"github.com/avengersguard/guard/moderation/voiceroom"
)

// Runtime state and handlers for one guild's moderation.
//
// Not safe for concurrent use: call the Process methods from jobs on Loop (or from a single goroutine in tests).
type Engine struct {
	Logger     *slog.Logger
	Platform   platform.Platform
	Config     Config
	Loop       *dispatch.Loop
	Ledger     ledger.Ledger
	Timers     *timers.Set
	Sanctions  *sanction.Scheduler
	Rooms      *voiceroom.Registry
	Controller *voiceroom.Controller
	Control    *voiceroom.Control
	Flows      *flow.Store
	Guard      *guard.Guard
	Commands   *command.Handler
	Panel      *panel.Panel
}

// Builds an engine. Timer and flow callbacks are routed onto loop; a nil loop runs them directly, which is only suitable for tests driven by a fake clock.
func NewEngine(logger *slog.Logger, p platform.Platform, c clock.Clock, loop *dispatch.Loop, words *keyword.List, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid moderation config: %w", err)
	}
	config.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.Real()
	}
	if words == nil {
		words = keyword.DefaultList()
	}
	dispatcher := func(kind string) timers.Dispatcher {
		if loop == nil {
			return nil
		}
		return loop.Dispatcher(kind)
	}

	eng := &Engine{
		Logger:   logger,
		Platform: p,
		Config:   config,
		Loop:     loop,
	}
	eng.Ledger = ledger.NewMemLedger(c)
	eng.Timers = timers.NewSet(c, dispatcher("timer"))
	eng.Sanctions = sanction.NewScheduler(logger, p, eng.Ledger, eng.Timers, sanction.Config{
		SanctionedRoleID:   config.SanctionedRoleID,
		UnregisteredRoleID: config.UnregisteredRoleID,
		ExemptRoleID:       config.ExemptRoleID,
		LogChannelID:       config.LogChannelID,
		Location:           config.Location,
	})
	eng.Rooms = voiceroom.NewRegistry()
	eng.Controller = voiceroom.NewController(logger, p, eng.Rooms, voiceroom.ControllerConfig{
		CreationChannelID:   config.CreationChannelID,
		CreationChannelName: config.CreationChannelName,
	})
	eng.Control = voiceroom.NewControl(logger, p, eng.Rooms, config.TransferStrictness)
	eng.Flows = flow.NewStore(logger, config.FlowCapacity, config.FlowWindow, dispatcher("flow"), eng.abandon)
	eng.Guard = guard.NewGuard(logger, p, eng.Sanctions, words, guard.Config{
		BypassRoleIDs: config.BypassRoleIDs,
		LogChannelID:  config.LogChannelID,
		IgnoreChannel: eng.Rooms.IsManaged,
	})
	eng.Commands = command.NewHandler(logger, p, eng.Sanctions, eng.Ledger, eng.Flows, command.Config{
		Prefix:              config.CommandPrefix,
		ModeratorRoleIDs:    config.ModeratorRoleIDs,
		MaleRoleID:          config.MaleRoleID,
		FemaleRoleID:        config.FemaleRoleID,
		CreationChannelName: creationChannelName(config.CreationChannelName),
		Location:            config.Location,
	})
	eng.Panel = panel.NewPanel(logger, eng.Control, eng.Flows)
	return eng, nil
}

// Name the setup command gives the room creation channel; it must be recognized by the controller.
func creationChannelName(match string) string {
	if match == "" {
		return "🚪 " + voiceroom.DefaultCreationChannelName
	}
	return "🚪 " + match
}

func (eng *Engine) abandon(f *flow.Flow) {
	eng.Commands.Abandon(context.Background(), f)
}

func (eng *Engine) recoverPanic(kind string, args ...any) {
	// similar to an HTTP server, we want to recover any panics from event handling
	if r := recover(); r != nil {
		eng.Logger.Error("moderation event execution exception", append([]any{"err", r, "event", kind}, args...)...)
	}
}

type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    *platform.Member
	Content   string
}

// Runs the banned word filter and then, if the message survived, any command it carries.
func (eng *Engine) ProcessMessage(ctx context.Context, evt MessageEvent) error {
	defer eng.recoverPanic("message", "guild", evt.GuildID, "channel", evt.ChannelID)

	if evt.Author == nil || evt.Author.Bot {
		return nil
	}
	if eng.Guard.CheckMessage(ctx, guard.Message{
		GuildID:   evt.GuildID,
		ChannelID: evt.ChannelID,
		MessageID: evt.MessageID,
		Author:    evt.Author,
		Content:   evt.Content,
	}) {
		return nil
	}
	_, err := eng.Commands.Handle(ctx, command.Message{
		GuildID:   evt.GuildID,
		ChannelID: evt.ChannelID,
		MessageID: evt.MessageID,
		Author:    evt.Author,
		Content:   evt.Content,
	})
	return err
}

// Routes a component click or form submission to whichever flow owns its custom ID.
func (eng *Engine) ProcessInteraction(ctx context.Context, in platform.Interaction) (resp platform.Response) {
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("moderation event execution exception", "err", r, "event", "interaction", "custom_id", in.CustomID)
			resp = platform.Ephemeral("❌ Something went wrong, please try again.")
		}
	}()

	switch {
	case in.CustomID == command.JailSelectID:
		return eng.Commands.CompleteJail(ctx, in)
	case in.CustomID == command.RegisterMaleID, in.CustomID == command.RegisterFemaleID:
		return eng.Commands.CompleteRegister(ctx, in)
	case panel.Handles(in.CustomID):
		return eng.Panel.Handle(ctx, in)
	default:
		eng.Logger.Debug("unhandled interaction", "custom_id", in.CustomID)
		return platform.Ephemeral("❌ This button is no longer active.")
	}
}

func (eng *Engine) ProcessVoiceUpdate(ctx context.Context, upd voiceroom.VoiceUpdate) error {
	defer eng.recoverPanic("voice", "guild", upd.GuildID, "member", upd.MemberID)
	return eng.Controller.HandleVoiceUpdate(ctx, upd)
}

// New members start unregistered, unless they left while jailed, in which case the sanction is put back. Bots are checked by the bot-add guard.
func (eng *Engine) ProcessMemberJoin(ctx context.Context, guildID string, mem platform.Member) {
	defer eng.recoverPanic("member-join", "guild", guildID, "member", mem.ID)
	if mem.Bot {
		eng.Guard.BotAdded(ctx, guildID, mem)
		return
	}
	logger := eng.Logger.With("guild", guildID, "member", mem.ID)

	eng.Ledger.SweepExpired(mem.ID)
	role := eng.Config.UnregisteredRoleID
	if slices.ContainsFunc(eng.Ledger.History(mem.ID), func(r ledger.Record) bool { return r.Active && !isAction(r) }) {
		role = eng.Config.SanctionedRoleID
		logger.Info("jailed member rejoined, restoring sanction")
	}
	if err := eng.Platform.AddRole(ctx, guildID, mem.ID, role); err != nil {
		platform.CallErrors.WithLabelValues("AddRole").Inc()
		logger.Warn("failed to assign role on join", "err", err, "role", role)
	}
	if err := eng.Platform.SetNickname(ctx, guildID, mem.ID, command.DefaultNickname); err != nil {
		platform.CallErrors.WithLabelValues("SetNickname").Inc()
		logger.Debug("failed to set nickname on join", "err", err)
	}
}

// Ban and kick records carry no role state.
func isAction(r ledger.Record) bool {
	return !r.Timed() && (strings.HasPrefix(r.Reason, "Ban: ") || strings.HasPrefix(r.Reason, "Kick: "))
}

func (eng *Engine) ProcessRoleCreate(ctx context.Context, guildID string, role platform.Role) {
	defer eng.recoverPanic("role-create", "guild", guildID, "role", role.ID)
	eng.Guard.RoleCreated(ctx, guildID, role)
}

func (eng *Engine) ProcessRoleDelete(ctx context.Context, guildID string, role platform.Role) {
	defer eng.recoverPanic("role-delete", "guild", guildID, "role", role.ID)
	eng.Guard.RoleDeleted(ctx, guildID, role)
}

func (eng *Engine) ProcessChannelCreate(ctx context.Context, guildID string, ch platform.Channel) {
	defer eng.recoverPanic("channel-create", "guild", guildID, "channel", ch.ID)
	eng.Guard.ChannelCreated(ctx, guildID, ch)
}

// Channel deletions also release any room registration for the channel, so a room deleted by hand is not left dangling in the registry.
func (eng *Engine) ProcessChannelDelete(ctx context.Context, guildID string, ch platform.Channel) {
	defer eng.recoverPanic("channel-delete", "guild", guildID, "channel", ch.ID)
	if eng.Rooms.IsManaged(ch.ID) {
		eng.Rooms.Release(ch.ID)
		return
	}
	eng.Guard.ChannelDeleted(ctx, guildID, ch)
}
