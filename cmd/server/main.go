// Package main provides the entry point for the mcbridge server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/gsm"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/mcbridge/internal/bot"
	"github.com/codeGROOVE-dev/mcbridge/internal/cleanup"
	"github.com/codeGROOVE-dev/mcbridge/internal/config"
	"github.com/codeGROOVE-dev/mcbridge/internal/countdown"
	"github.com/codeGROOVE-dev/mcbridge/internal/discord"
	"github.com/codeGROOVE-dev/mcbridge/internal/github"
	"github.com/codeGROOVE-dev/mcbridge/internal/metrics"
	"github.com/codeGROOVE-dev/mcbridge/internal/minecraft"
	"github.com/codeGROOVE-dev/mcbridge/internal/state"
)

const (
	shutdownTimeout      = 250 * time.Millisecond
	stateCleanupInterval = time.Hour
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	// Run the server
	exitCode := run(ctx, cancel)
	cancel() // Ensure cleanup before exit
	os.Exit(exitCode)
}

func run(ctx context.Context, cancel context.CancelFunc) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := loadConfig(ctx, gsm.Fetch)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	slog.Info("configuration loaded",
		"config_backend", cfg.ConfigBackend,
		"has_rcon", cfg.RCONPassword != "",
		"has_github_token", cfg.GitHubToken != "",
		"has_github_app", cfg.GitHubAppID != "",
		"has_github_webhook_secret", cfg.GitHubWebhookSecret != "",
		"has_minecraft_webhook_secret", cfg.MinecraftWebhookSecret != "",
		"event_stream_url", cfg.GitHubEventStreamURL)

	store, remote, err := openStateStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open state store", "backend", cfg.ConfigBackend, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}()

	settings := config.NewManager(
		config.NewStore(remote, config.NewFileStore(cfg.ConfigPath), slog.Default()),
		cfg.Defaults(),
		slog.Default())
	if err := settings.Load(ctx); err != nil {
		slog.Warn("failed to load settings, starting with defaults", "error", err)
	}

	features := cfg.Features(settings.Settings())
	slog.Info("features",
		"bridge", features.Bridge,
		"rcon", features.RCON,
		"query", features.Query,
		"github", features.GitHub)

	m := metrics.New()

	dc, err := discord.New(cfg.DiscordToken, slog.Default())
	if err != nil {
		slog.Error("failed to create Discord client", "error", err)
		return 1
	}

	svc, err := newServices(ctx, cfg, settings, store, dc, m)
	if err != nil {
		slog.Error("failed to set up services", "error", err)
		return 1
	}

	slash := discord.NewSlashCommandHandler(dc.Session(), svc.admin, slog.Default())
	slash.SetupHandler()
	dc.SetMessageHandler(svc.dispatcher)

	if err := dc.Open(); err != nil {
		slog.Error("failed to open Discord connection", "error", err)
		return 1
	}
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Warn("failed to close Discord client", "error", err)
		}
	}()

	slog.Info("connected to Discord", "bot_user_id", dc.BotUserID())

	if err := slash.RegisterCommands(cfg.DiscordGuildID); err != nil {
		// Don't fail - continue without slash commands
		slog.Warn("failed to register slash commands", "guild_id", cfg.DiscordGuildID, "error", err)
	}
	if cfg.RemoveCommandsOnExit && cfg.DiscordGuildID != "" {
		defer func() {
			if err := slash.RemoveCommands(cfg.DiscordGuildID); err != nil {
				slog.Warn("failed to remove slash commands", "guild_id", cfg.DiscordGuildID, "error", err)
			}
		}()
	}

	router := newRouter(routerConfig{
		metrics:          m,
		githubWebhook:    svc.githubWebhook,
		minecraftWebhook: svc.chatWebhook,
		health: func() string {
			f := cfg.Features(settings.Settings())
			return fmt.Sprintf("ok - bridge=%t rcon=%t query=%t github=%t", f.Bridge, f.RCON, f.Query, f.GitHub)
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	// Start services
	eg, ctx := errgroup.WithContext(ctx)

	// HTTP server
	eg.Go(func() error {
		slog.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down HTTP server")
		// Fast shutdown for quick handoff during deployments
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		svc.scheduler.Start(ctx)
		<-ctx.Done()
		svc.scheduler.Stop()
		return nil
	})

	eg.Go(func() error {
		svc.sweeper.Start(ctx)
		<-ctx.Done()
		svc.sweeper.Stop()
		return nil
	})

	eg.Go(func() error {
		svc.poller.Start(ctx)
		<-ctx.Done()
		svc.poller.Stop()
		return nil
	})

	if svc.stream != nil {
		eg.Go(func() error {
			go func() {
				<-ctx.Done()
				svc.stream.Stop()
			}()
			if err := svc.stream.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				// A rejected stream token should not take the bot down.
				slog.Error("GitHub event stream stopped", "error", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		runStateCleanup(ctx, store)
		return nil
	})

	// Wait for all services
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "error", err)
		cancel()
		return 1
	}

	slog.Info("shutdown complete")
	return 0
}

// services bundles the long-running components and handlers.
type services struct {
	scheduler     *countdown.Scheduler
	sweeper       *cleanup.Sweeper
	poller        *github.Poller
	stream        *github.Stream
	admin         *bot.Admin
	dispatcher    *bot.Dispatcher
	githubWebhook http.Handler
	chatWebhook   http.Handler
}

func newServices(
	ctx context.Context,
	cfg config.ServerConfig,
	settings *config.Manager,
	store state.Store,
	dc *discord.Client,
	m *metrics.Metrics,
) (*services, error) {
	logger := slog.Default()
	svc := &services{}

	svc.scheduler = countdown.New(countdown.Config{
		Gateway:  dc,
		Settings: settings,
		Logger:   logger.With("component", "countdown"),
		Metrics:  m,
	})

	svc.sweeper = cleanup.New(cleanup.Config{
		Gateway:  dc,
		Settings: settings,
		Logger:   logger.With("component", "cleanup"),
		Metrics:  m,
	})

	clients, err := githubClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc.poller = github.NewPoller(github.PollerConfig{
		Clients:    clients,
		Settings:   settings,
		Poster:     dc,
		Logger:     logger.With("component", "github_poller"),
		Metrics:    m,
		PushActive: cfg.PushSourceActive(),
	})

	if cfg.GitHubEventStreamURL != "" {
		stream, err := github.NewStream(github.StreamConfig{
			Settings:  settings,
			Poster:    dc,
			Dedup:     store,
			Logger:    logger.With("component", "github_stream"),
			Metrics:   m,
			ServerURL: cfg.GitHubEventStreamURL,
			Token:     cfg.GitHubToken,
		})
		if err != nil {
			return nil, fmt.Errorf("create event stream: %w", err)
		}
		svc.stream = stream
	}

	if cfg.GitHubWebhookSecret != "" {
		svc.githubWebhook = github.NewWebhookHandler(github.WebhookConfig{
			Settings: settings,
			Poster:   dc,
			Dedup:    store,
			Logger:   logger.With("component", "github_webhook"),
			Metrics:  m,
			Secret:   cfg.GitHubWebhookSecret,
		})
	}
	if cfg.MinecraftWebhookSecret != "" {
		svc.chatWebhook = bot.NewChatWebhook(bot.ChatWebhookConfig{
			Settings: settings,
			Poster:   dc,
			Logger:   logger.With("component", "minecraft_webhook"),
			Metrics:  m,
			Secret:   cfg.MinecraftWebhookSecret,
		})
	}

	features := cfg.Features(config.Settings{})
	dcfg := bot.DispatcherConfig{
		Settings:  settings,
		Poster:    dc,
		Countdown: svc.scheduler,
		Logger:    logger.With("component", "commands"),
		Metrics:   m,
	}
	if features.RCON {
		dcfg.Console = minecraft.NewRCON(cfg.RCONAddr(), cfg.RCONPassword, logger)
	}
	if features.Query {
		q, err := minecraft.NewQuery(cfg.QueryAddr())
		if err != nil {
			return nil, err
		}
		dcfg.Status = q
	}
	svc.dispatcher = bot.NewDispatcher(dcfg)

	svc.admin = bot.NewAdmin(bot.AdminConfig{
		Settings:          settings,
		Logger:            logger.With("component", "admin"),
		Features:          cfg.Features,
		OnCountdownChange: svc.scheduler.Wake,
		OnRepoChange:      svc.poller.Reset,
	})

	return svc, nil
}

// githubClients selects GitHub App, token or anonymous API access.
func githubClients(ctx context.Context, cfg config.ServerConfig) (github.ClientSource, error) {
	if cfg.GitHubAppID != "" && cfg.GitHubPrivateKey != "" {
		app, err := github.NewAppClient(cfg.GitHubAppID, cfg.GitHubPrivateKey, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("create GitHub App client: %w", err)
		}
		return app, nil
	}
	return github.NewStaticClient(ctx, cfg.GitHubToken), nil
}

// openStateStore opens the configured backend. The returned remote is nil for
// the file backend, where settings live only in the local file.
func openStateStore(ctx context.Context, cfg config.ServerConfig) (state.Store, config.Remote, error) {
	switch cfg.ConfigBackend {
	case "datastore":
		store, err := state.NewFidoStore(ctx, cfg.DatastoreName)
		if err != nil {
			return nil, nil, fmt.Errorf("create fido store: %w", err)
		}
		return store, store, nil
	case "redis":
		store, err := state.NewRedisStore(ctx, state.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		return store, store, nil
	default:
		return state.NewMemoryStore(), nil, nil
	}
}

func runStateCleanup(ctx context.Context, store state.Store) {
	ticker := time.NewTicker(stateCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx); err != nil {
				slog.Warn("state cleanup failed", "error", err)
			}
		}
	}
}

// secretFetcher looks up a named secret in Secret Manager.
type secretFetcher func(ctx context.Context, name string) (string, error)

func loadConfig(ctx context.Context, fetch secretFetcher) (config.ServerConfig, error) {
	cfg, err := config.ParseEnv()
	if err != nil {
		return cfg, err
	}

	// Environment variables take precedence, then Secret Manager
	getSecret := func(name string, dst *string) {
		if *dst != "" {
			slog.Debug("using environment variable", "name", name)
			return
		}
		if fetch == nil {
			return
		}
		value, err := fetch(ctx, name)
		if err != nil {
			slog.Debug("secret not found in Secret Manager", "name", name, "error", err)
			return
		}
		if value != "" {
			slog.Info("loaded secret from Secret Manager", "name", name)
			*dst = value
		}
	}

	getSecret("DISCORD_TOKEN", &cfg.DiscordToken)
	getSecret("RCON_PASSWORD", &cfg.RCONPassword)
	getSecret("GITHUB_TOKEN", &cfg.GitHubToken)
	getSecret("GITHUB_WEBHOOK_SECRET", &cfg.GitHubWebhookSecret)
	getSecret("MINECRAFT_WEBHOOK_SECRET", &cfg.MinecraftWebhookSecret)
	getSecret("GITHUB_PRIVATE_KEY", &cfg.GitHubPrivateKey)

	// Load GitHub private key from file when not given inline
	if cfg.GitHubPrivateKey == "" {
		if keyPath := os.Getenv("GITHUB_PRIVATE_KEY_PATH"); keyPath != "" {
			data, err := os.ReadFile(keyPath)
			if err != nil {
				return cfg, fmt.Errorf("read private key: %w", err)
			}
			cfg.GitHubPrivateKey = strings.TrimSpace(string(data))
		}
	}

	return cfg, cfg.Validate()
}

type routerConfig struct {
	metrics          *metrics.Metrics
	githubWebhook    http.Handler // nil when no webhook secret is configured
	minecraftWebhook http.Handler // nil when no webhook secret is configured
	health           func() string
}

func newRouter(rc routerConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(securityHeadersMiddleware)
	// Middleware only runs for matched routes.
	router.NotFoundHandler = securityHeadersMiddleware(http.NotFoundHandler())
	router.MethodNotAllowedHandler = securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}))

	// Health endpoints
	router.HandleFunc("/", healthHandler).Methods("GET")
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/healthz", makeHealthzHandler(rc.health)).Methods("GET")
	router.Handle("/metrics", rc.metrics.Handler()).Methods("GET")

	if rc.githubWebhook != nil {
		router.Handle("/github", rc.githubWebhook).Methods("POST")
	}
	if rc.minecraftWebhook != nil {
		router.Handle("/minecraft", rc.minecraftWebhook).Methods("POST")
	}
	return router
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		slog.Debug("health write error", "error", err)
	}
}

func makeHealthzHandler(status func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := "ok"
		if status != nil {
			body = status()
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintln(w, body); err != nil {
			slog.Debug("healthz write error", "error", err)
		}
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}
