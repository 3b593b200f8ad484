package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/shiritori/internal/adapter/dictionary"
	"github.com/pscheid92/shiritori/internal/adapter/discord"
	"github.com/pscheid92/shiritori/internal/adapter/filestore"
	"github.com/pscheid92/shiritori/internal/adapter/httpserver"
	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	"github.com/pscheid92/shiritori/internal/adapter/postgres"
	"github.com/pscheid92/shiritori/internal/adapter/redis"
	"github.com/pscheid92/shiritori/internal/app"
	"github.com/pscheid92/shiritori/internal/domain"
	"github.com/pscheid92/shiritori/internal/game"
	"github.com/pscheid92/shiritori/internal/platform/config"
	"github.com/pscheid92/shiritori/internal/platform/logging"
	"github.com/pscheid92/shiritori/internal/platform/version"
)

const (
	setupTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupRepository connects the configured store backend. The returned func
// releases its connections.
func setupRepository(cfg *config.Config, storeMetrics *metrics.StoreMetrics) (domain.ChannelRepository, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	switch cfg.StoreBackend {
	case config.StoreRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL, storeMetrics)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		return redis.NewChannelRepo(client), func() { _ = client.Close() }

	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, storeMetrics)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		return postgres.NewChannelRepo(pool), pool.Close

	default:
		return filestore.NewChannelRepo(cfg.ChannelsDir), func() {}
	}
}

func registerCommands(cfg *config.Config, registrar discord.CommandRegistrar) {
	if cfg.CommandsFile == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := discord.RegisterCommands(ctx, registrar, cfg.AppID, cfg.CommandsFile, discord.DefaultCommandPolicy); err != nil {
		slog.Error("Failed to register commands, continuing without them", "path", cfg.CommandsFile, "error", err)
	}
}

func healthChecks(session *discord.Session, repo domain.ChannelRepository, backend string) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{
			Name: "gateway",
			Check: func(context.Context) error {
				if state := session.State(); state != discord.StateReady {
					return fmt.Errorf("gateway session is %s", state)
				}
				return nil
			},
		},
		{
			Name:    backend,
			Check:   repo.Ping,
			Startup: true,
		},
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "version", version.Version, "store", cfg.StoreBackend)

	reg := metrics.NewRegistry()
	gatewayMetrics := metrics.NewGatewayMetrics(reg)
	gameMetrics := metrics.NewGameMetrics(reg)
	restMetrics := metrics.NewRESTMetrics(reg)
	dictionaryMetrics := metrics.NewDictionaryMetrics(reg)
	storeMetrics := metrics.NewStoreMetrics(reg)

	repo, closeRepo := setupRepository(cfg, storeMetrics)
	defer closeRepo()

	store := game.NewChannelStore(repo)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), setupTimeout)
	loaded, err := store.LoadAll(loadCtx)
	cancelLoad()
	if err != nil {
		slog.Error("Failed to load channels", "error", err)
		os.Exit(1)
	}
	slog.Info("Channels loaded", "count", loaded)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	api := discord.NewClient(cfg.APIBaseURL, cfg.DiscordToken, httpClient,
		discord.WithRateLimit(cfg.APIRateLimit),
		discord.WithMetrics(restMetrics),
		discord.WithGatewayLookupURL(cfg.GatewayLookupURL),
	)
	registerCommands(cfg, api)

	dict := dictionary.NewClient(cfg.DictionaryURL, httpClient, dictionaryMetrics)

	g := app.NewGame(app.GameConfig{
		BotUsername:         cfg.BotUsername,
		VoteThreshold:       cfg.VoteThreshold,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}, store, game.NewVoteTracker(), api, dict, clock, gameMetrics)

	session := discord.NewSession(discord.SessionConfig{
		Token:   cfg.DiscordToken,
		Intents: cfg.GatewayIntents,
	}, api, discord.NewEventRouter(g), clock, gatewayMetrics)

	srv := httpserver.NewServer(cfg.Port, metrics.Handler(reg), healthChecks(session, repo, cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return session.Run(egCtx)
	})
	eg.Go(srv.Start)
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := eg.Wait()
	if runErr != nil {
		slog.Error("Bot stopped", "error", runErr)
	} else {
		slog.Info("Shutdown signal received, cleaning up...")
	}

	session.Wait()
	g.Wait()

	saveCtx, cancelSave := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelSave()
	if err := store.SaveAll(saveCtx); err != nil {
		slog.Error("Failed to flush channels", "error", err)
		runErr = err
	}

	if runErr != nil {
		closeRepo()
		os.Exit(1)
	}
}
