// Platform implementation backed by a discordgo session.
//
// Voice presence and role snapshots come from gateway state; everything else is a REST call made with the caller's context. Discord's own rate limit handling lives in discordgo; outbound direct messages are additionally throttled here, since mass DMs are what gets bot accounts flagged.
package discordplatform

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/avengersguard/guard/moderation/platform"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// Default direct message throughput.
const (
	DefaultDMRate  = rate.Limit(2)
	DefaultDMBurst = 5
)

type Platform struct {
	Logger  *slog.Logger
	Session *discordgo.Session

	dmLimiter *rate.Limiter

	mu sync.Mutex
	// guild -> role ID -> last seen definition; the gateway delete event carries only the ID
	roles  map[string]map[string]platform.Role
	owners map[string]string
}

var _ platform.Platform = (*Platform)(nil)

func New(logger *slog.Logger, s *discordgo.Session, dmLimit rate.Limit, dmBurst int) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	if dmLimit <= 0 {
		dmLimit = DefaultDMRate
	}
	if dmBurst <= 0 {
		dmBurst = DefaultDMBurst
	}
	return &Platform{
		Logger:    logger.With("component", "discord"),
		Session:   s,
		dmLimiter: rate.NewLimiter(dmLimit, dmBurst),
		roles:     make(map[string]map[string]platform.Role),
		owners:    make(map[string]string),
	}
}

// Gateway intents the engine depends on.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMembers |
	discordgo.IntentGuildVoiceStates |
	discordgo.IntentGuildMessages |
	discordgo.IntentMessageContent

func opts(ctx context.Context) discordgo.RequestOption {
	return discordgo.WithContext(ctx)
}

// Reports whether err is Discord saying the entity does not exist.
func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownRole, discordgo.ErrCodeUnknownMessage:
			return true
		}
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}
