package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/avengersguard/guard/moderation"
	"github.com/avengersguard/guard/moderation/clock"
	"github.com/avengersguard/guard/moderation/dispatch"
	"github.com/avengersguard/guard/moderation/keyword"
	"github.com/avengersguard/guard/moderation/platform/discordplatform"
	"github.com/avengersguard/guard/moderation/voiceroom"

	"github.com/bwmarrin/discordgo"
	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-cleanhttp"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "aguard",
		Usage:   "moderation daemon for the Avengers community server",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"AGUARD_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "connect to Discord and run the moderation engine",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "discord-token",
			Usage:    "bot token",
			Required: true,
			EnvVars:  []string{"AGUARD_DISCORD_TOKEN", "TOKEN"},
		},
		&cli.StringFlag{
			Name:    "guild-id",
			Usage:   "only handle events from this guild (all guilds if empty)",
			EnvVars: []string{"AGUARD_GUILD_ID", "GUILD_ID"},
		},
		&cli.StringFlag{
			Name:    "log-channel-id",
			Usage:   "channel receiving moderation log lines",
			EnvVars: []string{"AGUARD_LOG_CHANNEL_ID", "LOG_CHANNEL_ID"},
		},
		&cli.StringFlag{
			Name:     "sanctioned-role-id",
			Usage:    "role a jailed member is left with",
			Required: true,
			EnvVars:  []string{"AGUARD_SANCTIONED_ROLE_ID", "CEZALI_ROLE_ID"},
		},
		&cli.StringFlag{
			Name:     "unregistered-role-id",
			Usage:    "role given to new members and after a sanction ends",
			Required: true,
			EnvVars:  []string{"AGUARD_UNREGISTERED_ROLE_ID", "KAYITSIZ_ROLE_ID"},
		},
		&cli.StringFlag{
			Name:    "exempt-role-id",
			Usage:   "members with this role are never sanctioned by the guards",
			EnvVars: []string{"AGUARD_EXEMPT_ROLE_ID", "MUAF_ROLE_ID"},
		},
		&cli.StringFlag{
			Name:    "moderator-role-ids",
			Usage:   "comma-separated roles allowed to use moderator commands",
			EnvVars: []string{"AGUARD_MODERATOR_ROLE_IDS", "YETKILI_ROLE_IDS"},
		},
		&cli.StringFlag{
			Name:    "protected-bypass-role-ids",
			Usage:   "comma-separated roles allowed to change roles and channels without tripping the guards",
			EnvVars: []string{"AGUARD_PROTECTED_BYPASS_ROLE_IDS"},
		},
		&cli.StringFlag{
			Name:    "male-role-id",
			EnvVars: []string{"AGUARD_MALE_ROLE_ID", "ERKEK_ROLE_ID"},
		},
		&cli.StringFlag{
			Name:    "female-role-id",
			EnvVars: []string{"AGUARD_FEMALE_ROLE_ID", "KIZ_ROLE_ID"},
		},
		&cli.StringFlag{
			Name:    "creation-channel-id",
			Usage:   "voice channel which creates private rooms (matched by name if empty)",
			EnvVars: []string{"AGUARD_CREATION_CHANNEL_ID"},
		},
		&cli.StringFlag{
			Name:    "creation-channel-name",
			Usage:   "text contained in the name of the room creation voice channel",
			Value:   voiceroom.DefaultCreationChannelName,
			EnvVars: []string{"AGUARD_CREATION_CHANNEL_NAME"},
		},
		&cli.StringFlag{
			Name:    "transfer-strictness",
			Usage:   "room ownership transfer validation: lenient, or occupant (target must be in the room)",
			Value:   "lenient",
			EnvVars: []string{"AGUARD_TRANSFER_STRICTNESS"},
		},
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "zone used for times shown to members",
			Value:   moderation.DefaultTimezone,
			EnvVars: []string{"AGUARD_TIMEZONE", "TZ_NAME"},
		},
		&cli.StringFlag{
			Name:    "banned-words-json",
			Usage:   "path to a JSON file with a \"banned-words\" list (built-in list if empty)",
			EnvVars: []string{"AGUARD_BANNED_WORDS_JSON"},
		},
		&cli.StringFlag{
			Name:    "command-prefix",
			Value:   ".",
			EnvVars: []string{"AGUARD_COMMAND_PREFIX"},
		},
		&cli.IntFlag{
			Name:    "queue-size",
			Usage:   "pending event capacity of the control thread",
			Value:   dispatch.DefaultQueueSize,
			EnvVars: []string{"AGUARD_QUEUE_SIZE"},
		},
		&cli.Float64Flag{
			Name:    "dm-rate-limit",
			Usage:   "max direct messages per second",
			Value:   float64(discordplatform.DefaultDMRate),
			EnvVars: []string{"AGUARD_DM_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for health and metrics",
			Value:   ":8080",
			EnvVars: []string{"AGUARD_BIND"},
		},
		&cli.StringFlag{
			Name:    "port",
			Usage:   "port to listen on; overrides the port of --bind (for hosts which assign one)",
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:    "self-ping-url",
			Usage:   "URL fetched periodically to keep free-tier hosts from idling the process",
			EnvVars: []string{"AGUARD_SELF_PING_URL"},
		},
		&cli.DurationFlag{
			Name:    "self-ping-interval",
			Value:   5 * time.Minute,
			EnvVars: []string{"AGUARD_SELF_PING_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var level slog.Level
		if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)

		shutdownTracing, err := setupTracing(ctx, "aguard")
		if err != nil {
			return err
		}
		defer shutdownTracing()

		loc, err := time.LoadLocation(cctx.String("timezone"))
		if err != nil {
			return fmt.Errorf("loading timezone: %w", err)
		}
		strictness, err := voiceroom.ParseTransferStrictness(cctx.String("transfer-strictness"))
		if err != nil {
			return err
		}
		words := keyword.DefaultList()
		if p := cctx.String("banned-words-json"); p != "" {
			if words, err = keyword.LoadFromFileJSON(p); err != nil {
				return err
			}
			logger.Info("loaded banned words", "path", p, "count", words.Len())
		}

		session, err := discordgo.New("Bot " + cctx.String("discord-token"))
		if err != nil {
			return fmt.Errorf("creating discord session: %w", err)
		}
		session.Identify.Intents = discordplatform.Intents
		// handlers only convert and enqueue; keeping them synchronous preserves gateway order
		session.SyncEvents = true
		session.Client = cleanhttp.DefaultPooledClient()
		session.Client.Timeout = 30 * time.Second

		plat := discordplatform.New(logger, session, rate.Limit(cctx.Float64("dm-rate-limit")), 0)
		plat.TrackState()

		loop := dispatch.NewLoop(logger, cctx.Int("queue-size"))
		eng, err := moderation.NewEngine(logger, plat, clock.Real(), loop, words, moderation.Config{
			SanctionedRoleID:    cctx.String("sanctioned-role-id"),
			UnregisteredRoleID:  cctx.String("unregistered-role-id"),
			ExemptRoleID:        cctx.String("exempt-role-id"),
			LogChannelID:        cctx.String("log-channel-id"),
			ModeratorRoleIDs:    splitIDs(cctx.String("moderator-role-ids")),
			BypassRoleIDs:       splitIDs(cctx.String("protected-bypass-role-ids")),
			MaleRoleID:          cctx.String("male-role-id"),
			FemaleRoleID:        cctx.String("female-role-id"),
			CreationChannelID:   cctx.String("creation-channel-id"),
			CreationChannelName: cctx.String("creation-channel-name"),
			TransferStrictness:  strictness,
			CommandPrefix:       cctx.String("command-prefix"),
			Location:            loc,
		})
		if err != nil {
			return err
		}

		bot := NewBot(logger, session, plat, eng, loop, cctx.String("guild-id"))
		bot.Register()
		if err := session.Open(); err != nil {
			return fmt.Errorf("opening discord gateway: %w", err)
		}
		defer func() {
			if err := session.Close(); err != nil {
				logger.Warn("closing discord session", "err", err)
			}
		}()
		logger.Info("connected to discord", "version", versioninfo.Short())

		srv := NewServer(logger, loop, eng, listenAddr(cctx.String("bind"), cctx.String("port")))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return loop.Run(ctx) })
		g.Go(func() error { return srv.Run(ctx) })
		if u := cctx.String("self-ping-url"); u != "" {
			pinger := NewPinger(logger, u, cctx.Duration("self-ping-interval"))
			g.Go(func() error { return pinger.Run(ctx) })
		}
		return g.Wait()
	},
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func listenAddr(bind, port string) string {
	if port == "" {
		return bind
	}
	host := bind
	if i := strings.LastIndex(bind, ":"); i >= 0 {
		host = bind[:i]
	}
	return host + ":" + port
}
