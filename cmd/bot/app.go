package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/config"
	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/auth"
	"github.com/Jacobbrewer1/plexcord/pkg/bridge"
	"github.com/Jacobbrewer1/plexcord/pkg/dataaccess"
	"github.com/Jacobbrewer1/plexcord/pkg/events"
	"github.com/Jacobbrewer1/plexcord/pkg/invites"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/namecache"
	"github.com/Jacobbrewer1/plexcord/pkg/tickets"
	"github.com/Jacobbrewer1/plexcord/pkg/verify"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// IApp is the interface for the application.
type IApp interface {
	// Session returns the discord session.
	Session() *discordgo.Session

	// Log returns the application logger.
	Log() *slog.Logger
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan any

	cfg *config.Config

	store     *dataaccess.Store
	publisher events.Publisher
	chat      tickets.Chat
	manager   *tickets.Manager
	routes    *tickets.Router
	bridge    *bridge.Bridge
	names     *namecache.Cache
	invites   *invites.Service
	verifier  *verify.Verifier
	tokens    *auth.TokenManager
	creds     auth.Credentials
	limiter   *clientLimiter
	respond   responder

	// commands are the slash commands registered at startup.
	commands []*discordgo.ApplicationCommand
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router, cfg *config.Config) *App {
	return &App{
		Logger: l,
		r:      r,
		cfg:    cfg,
	}
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dataaccess.Open(ctx, a.Logger, dataaccess.Config{
		Driver:   a.cfg.DBDriver,
		DataDir:  a.cfg.DataDir,
		MongoURI: a.cfg.MongoUri,
	})
	if err != nil {
		return fmt.Errorf("error opening store: %w", err)
	}

	if err := a.openPublisher(); err != nil {
		return err
	}

	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	var plex invites.Provisioner
	if a.cfg.PlexEnabled() {
		plex = invites.NewPlexClient(a.cfg.PlexURL, a.cfg.PlexToken, a.cfg.PlexServerId, a.cfg.PlexLibraries)
	}

	resolver := namecache.NewDiscordResolver(a.s, a.cfg.GuildId)
	chat := tickets.NewDiscordChat(a.s)
	if err := a.attach(ctx, store, chat, chat, resolver, plex); err != nil {
		return err
	}
	a.respond = sessionResponder{s: a.s}

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
	})

	if err := a.RegisterDiscordHandlers(); err != nil {
		return fmt.Errorf("error registering discord handlers: %w", err)
	}

	// Start event listener.
	go a.eventListener()

	// Ticket transitions run on the bridge workers.
	go a.bridge.Run(ctx)

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	if plex != nil {
		go a.invites.RunSweeper(ctx, a.cfg.InviteSweepInterval)
	}

	a.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	<-ctx.Done()
	a.Info("Received shutdown signal")

	if err := a.ShutdownHook(); err != nil {
		a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
	}
	return nil
}

// attach builds the ticket engine and its collaborators on top of a store and
// a chat backend.
func (a *App) attach(ctx context.Context, store *dataaccess.Store, chat tickets.Chat, roles verify.Roles, resolver namecache.Resolver, plex invites.Provisioner) error {
	a.store = store
	a.chat = chat

	if a.publisher == nil {
		a.publisher = events.Nop{}
	}

	a.manager = tickets.NewManager(a.Logger, store.Panels, store.Tickets, chat,
		tickets.WithCloseGrace(a.cfg.CloseGrace),
		tickets.WithPublisher(a.publisher),
	)

	panels, err := store.Panels.ListPanels(ctx)
	if err != nil {
		return fmt.Errorf("error listing panels: %w", err)
	}

	// Broken panels are skipped, the rest keep working.
	a.routes, err = tickets.BuildRouter(panels)
	if err != nil {
		a.Warn("Some ticket panels could not be routed", slog.String(logging.KeyError, err.Error()))
	}
	a.Info("Ticket routes loaded", slog.Int("panels", len(panels)), slog.Int("routes", a.routes.Len()))

	a.bridge = bridge.New(a.Logger, a.cfg.BridgeWorkers)

	a.names, err = namecache.New(resolver, namecache.DefaultSize)
	if err != nil {
		return fmt.Errorf("error creating name cache: %w", err)
	}

	a.invites = invites.NewService(a.Logger, store.Invites, plex, a.cfg.InviteTTL)

	if a.cfg.VerificationEnabled() {
		a.verifier = verify.New(a.Logger, roles, a.cfg.VerifiedRoleId,
			verify.WithLength(a.cfg.CaptchaLength),
			verify.WithTTL(a.cfg.CaptchaTTL),
		)
	}

	if a.cfg.APISecret != "" {
		a.tokens, err = auth.NewTokenManager(a.cfg.APISecret, a.cfg.TokenTTL)
		if err != nil {
			return fmt.Errorf("error creating token manager: %w", err)
		}
	}
	a.creds = auth.Credentials{Username: a.cfg.DashboardUser, Password: a.cfg.DashboardPassword}

	a.limiter, err = newClientLimiter(a.cfg.APIRateLimit)
	if err != nil {
		return fmt.Errorf("error creating rate limiter: %w", err)
	}
	return nil
}

func (a *App) openPublisher() error {
	if a.cfg.AMQPUrl == "" {
		a.publisher = events.Nop{}
		return nil
	}

	p, err := events.NewAMQPPublisher(a.Logger, a.cfg.AMQPUrl, a.cfg.AMQPExchange)
	if err != nil {
		return fmt.Errorf("error connecting to AMQP: %w", err)
	}
	a.publisher = p
	return nil
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error

	if a.svr != nil {
		if err := a.svr.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down server: %w", err))
		}
	}

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		errs = append(errs, fmt.Errorf("error unregistering slash commands: %w", err))
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing connection to Discord: %w", err))
	}

	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing event publisher: %w", err))
	}

	if err := a.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("error closing store: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + a.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsAll)

	if a.eventNotifier == nil {
		// Create event notifier. This is used to count events. It is buffered to prevent blocking.
		a.eventNotifier = make(chan any, 100)
	}

	dg.SetEventNotifier(a.eventNotifier)

	a.s = dg
	return nil
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:              ":" + a.cfg.MonitoringPort,
		Handler:           a.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) runServer() {
	go func() {
		a.Info("Starting API server", slog.String("addr", a.svr.Addr))
		if err := a.svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Error("Error starting API server", slog.String(logging.KeyError, err.Error()))
			a.Warn("API and monitoring will not be available")
		}
	}()
}

func (a *App) RegisterDiscordHandlers() error {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Name cache eviction and Plex access follow channel and member changes.
	a.s.AddHandler(a.channelUpdateHandler)
	a.s.AddHandler(a.channelDeleteHandler)
	a.s.AddHandler(a.memberUpdateHandler)
	a.s.AddHandler(a.memberRemoveHandler)

	// New members are asked to verify.
	a.s.AddHandler(a.memberAddHandler)

	// Interaction create handler.
	a.s.AddHandler(a.interactionHandler(
		map[string]slashCommandController{
			panelCmdName:  panelCmdController,
			plexCmdName:   plexCmdController,
			ticketCmdName: ticketCmdController,
			verifyCmdName: verifyCmdController,
		},
	))
	return nil
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		switch t := e.(type) {
		case *discordgo.Event:
			if t.Type != "" {
				monitoring.TotalDiscordEvents.WithLabelValues(t.Type).Inc()
			} else {
				// If there is no type, then use the operation name.
				monitoring.TotalDiscordEvents.WithLabelValues(strings.ToUpper(t.Operation.String())).Inc()
			}
		default:
			a.Error("Unknown event type", slog.String("type", fmt.Sprintf("%T", e)))
			monitoring.TotalDiscordEvents.WithLabelValues("UNKNOWN").Inc()
		}
	}
}

func (a *App) registerSlashCommands() error {
	a.commands = make([]*discordgo.ApplicationCommand, 0, 4)
	for _, cmd := range []*discordgo.ApplicationCommand{panelCmd, plexCmd, ticketCmd, verifyCmd} {
		created, err := a.s.ApplicationCommandCreate(a.cfg.ApplicationId, a.cfg.GuildId, cmd)
		if err != nil {
			return fmt.Errorf("error creating %s command for guild %s: %w", cmd.Name, a.cfg.GuildId, err)
		}
		a.commands = append(a.commands, created)
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	for _, cmd := range a.commands {
		if err := a.s.ApplicationCommandDelete(a.cfg.ApplicationId, a.cfg.GuildId, cmd.ID); err != nil {
			return fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, a.cfg.GuildId, err)
		}
	}
	return nil
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}
