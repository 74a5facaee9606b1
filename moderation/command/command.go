// Prefix commands issued by moderators in text channels, and the interactive flows they start.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avengersguard/guard/moderation/flow"
	"github.com/avengersguard/guard/moderation/keyword"
	"github.com/avengersguard/guard/moderation/ledger"
	"github.com/avengersguard/guard/moderation/platform"
	"github.com/avengersguard/guard/moderation/sanction"
)

var (
	ErrUnauthorized   = errors.New("not authorized")
	ErrMalformed      = errors.New("malformed command")
	ErrMemberNotFound = errors.New("member not found")
)

type usageError struct {
	usage string
}

func (e *usageError) Error() string { return "usage: " + e.usage }
func (e *usageError) Unwrap() error { return ErrMalformed }

type Platform interface {
	platform.Members
	platform.Channels
	platform.Voice
	platform.Messenger
}

const DefaultPrefix = "."

// Nickname given to members who are not registered.
const DefaultNickname = "★ Name | Age"

type Config struct {
	Prefix string
	// members holding any of these (or with the Administrator permission) may moderate
	ModeratorRoleIDs []string
	MaleRoleID       string
	FemaleRoleID     string
	// name of the room creation channel made by the setup command
	CreationChannelName string
	Location            *time.Location
}

type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    *platform.Member
	Content   string
}

type definition struct {
	usage     string
	moderator bool
	run       func(h *Handler, ctx context.Context, msg Message, args []string) error
}

const (
	usageJail       = "jail <user>"
	usageUnjail     = "unjail <user>"
	usageBan        = "ban <user> [reason]"
	usageKick       = "kick <user> [reason]"
	usageHistory    = "history [user]"
	usageUnregister = "unregister <user>"
	usageRegister   = "register <user> [name] [age]"
	usageName       = "name <user> <name> <age>"
	usagePurge      = "purge <count>"
	usageAnnounce   = "announce <text>"
	usageJoin       = "join"
	usageLeave      = "leave"
)

var commands = map[string]definition{
	"jail":       {usage: usageJail, moderator: true, run: (*Handler).jail},
	"unjail":     {usage: usageUnjail, moderator: true, run: (*Handler).unjail},
	"ban":        {usage: usageBan, moderator: true, run: (*Handler).ban},
	"kick":       {usage: usageKick, moderator: true, run: (*Handler).kick},
	"history":    {usage: usageHistory, run: (*Handler).history},
	"unregister": {usage: usageUnregister, moderator: true, run: (*Handler).unregister},
	"register":   {usage: usageRegister, moderator: true, run: (*Handler).register},
	"name":       {usage: usageName, moderator: true, run: (*Handler).rename},
	"purge":      {usage: usagePurge, run: (*Handler).purge},
	"announce":   {usage: usageAnnounce, moderator: true, run: (*Handler).announce},
	"setup":      {usage: "setup", run: (*Handler).setup},
	"join":       {usage: usageJoin, run: (*Handler).join},
	"leave":      {usage: usageLeave, run: (*Handler).leave},
}

// Turkish names the server's moderators are used to. Keys are stored folded, the way Parse sees them.
var aliases = foldKeys(map[string]string{
	"cezalar":  "history",
	"kayıtsız": "unregister",
	"k":        "register",
	"kayıt":    "register",
	"isim":     "name",
	"sil":      "purge",
	"duyurudm": "announce",
	"setupv1":  "setup",
	"katıl":    "join",
	"çık":      "leave",
})

func foldKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[keyword.Fold(k)] = v
	}
	return out
}

// Splits "<prefix>name args..." into a lower-cased command name and its arguments.
func Parse(prefix, content string) (string, []string, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	name := keyword.Fold(fields[0])
	if canon, ok := aliases[name]; ok {
		name = canon
	}
	return name, fields[1:], true
}

// Not safe for concurrent use; runs on the control thread.
type Handler struct {
	Logger    *slog.Logger
	Platform  Platform
	Sanctions *sanction.Scheduler
	Ledger    ledger.Ledger
	Flows     *flow.Store
	Config    Config
	// runs long fan-out work (announcements) off the control thread
	Async func(fn func())
}

func NewHandler(logger *slog.Logger, p Platform, sanctions *sanction.Scheduler, l ledger.Ledger, flows *flow.Store, config Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.CreationChannelName == "" {
		config.CreationChannelName = "🚪 Avengers Kanal Oluşturma"
	}
	return &Handler{
		Logger:    logger.With("component", "command"),
		Platform:  p,
		Sanctions: sanctions,
		Ledger:    l,
		Flows:     flows,
		Config:    config,
		Async:     func(fn func()) { go fn() },
	}
}

func (h *Handler) IsModerator(mem *platform.Member) bool {
	if mem == nil {
		return false
	}
	return mem.Admin || mem.HasAnyRole(h.Config.ModeratorRoleIDs)
}

// Runs the command in msg, if any. Returns false if msg is not a known command. Failures are reported to the channel, and returned.
func (h *Handler) Handle(ctx context.Context, msg Message) (bool, error) {
	if msg.Author == nil || msg.Author.Bot {
		return false, nil
	}
	name, args, ok := Parse(h.Config.Prefix, msg.Content)
	if !ok {
		return false, nil
	}
	cmd, ok := commands[name]
	if !ok {
		return false, nil
	}
	logger := h.Logger.With("guild", msg.GuildID, "command", name, "author", msg.Author.ID)

	var err error
	if cmd.moderator && !h.IsModerator(msg.Author) {
		err = ErrUnauthorized
	} else {
		err = cmd.run(h, ctx, msg, args)
	}
	if err == nil {
		commandsTotal.WithLabelValues(name, "ok").Inc()
		return true, nil
	}

	var usage *usageError
	switch {
	case errors.Is(err, ErrUnauthorized):
		commandsTotal.WithLabelValues(name, "unauthorized").Inc()
		h.reply(ctx, msg, "❌ You are not allowed to use this command.")
	case errors.As(err, &usage):
		commandsTotal.WithLabelValues(name, "malformed").Inc()
		h.reply(ctx, msg, fmt.Sprintf("❌ Usage: `%s%s`", h.Config.Prefix, usage.usage))
	case errors.Is(err, ErrMemberNotFound):
		commandsTotal.WithLabelValues(name, "malformed").Inc()
		h.reply(ctx, msg, "❌ Member not found.")
	default:
		commandsTotal.WithLabelValues(name, "error").Inc()
		logger.Warn("command failed", "err", err)
		h.reply(ctx, msg, "❌ Something went wrong, please try again.")
	}
	return true, err
}

func (h *Handler) reply(ctx context.Context, msg Message, text string) {
	if err := h.Platform.SendChannelMessage(ctx, msg.ChannelID, text); err != nil {
		platform.CallErrors.WithLabelValues("SendChannelMessage").Inc()
		h.Logger.Warn("failed to send command reply", "err", err, "channel", msg.ChannelID)
	}
}

// Resolves a user argument to a current guild member.
func (h *Handler) target(ctx context.Context, guildID string, args []string, usage string) (*platform.Member, error) {
	if len(args) == 0 {
		return nil, &usageError{usage}
	}
	id, ok := platform.ParseUserID(args[0])
	if !ok {
		return nil, &usageError{usage}
	}
	mem, err := h.Platform.FetchMember(ctx, guildID, id)
	if err != nil {
		platform.CallErrors.WithLabelValues("FetchMember").Inc()
		return nil, fmt.Errorf("fetching member %s: %w", id, err)
	}
	if mem == nil {
		return nil, ErrMemberNotFound
	}
	return mem, nil
}

// Clears the UI of a flow that was never completed.
func (h *Handler) Abandon(ctx context.Context, f *flow.Flow) {
	var text string
	switch f.Kind {
	case flow.KindJail:
		text = "⌛ Time is up, jail cancelled."
	case flow.KindRegister:
		text = "⌛ Time is up, registration cancelled."
	default:
		return
	}
	if f.MessageID == "" {
		return
	}
	if err := h.Platform.EditComponents(ctx, f.ChannelID, f.MessageID, platform.ComponentMessage{Text: text}); err != nil {
		platform.CallErrors.WithLabelValues("EditComponents").Inc()
		h.Logger.Debug("failed to clear abandoned flow", "err", err, "message", f.MessageID)
	}
}
