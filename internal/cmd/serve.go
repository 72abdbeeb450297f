package cmd

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/commands"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/store"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/server"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and its health server",
	Long: `Run the Telegram bot (long polling) together with the health,
version and metrics HTTP server.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and log the result (no hot reload)

Shutdown stops polling, waits for in-flight commands, stops the HTTP
server, closes the database and flushes logs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "health server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "health server port (overrides server.port)")
}

// serveOverrides turns explicitly set flags into runtime config overrides.
func serveOverrides(cmd *cobra.Command) map[string]any {
	values := map[string]any{}
	if cmd.Flags().Changed("host") {
		values["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		values["port"] = serverPort
	}
	if len(values) == 0 {
		return nil
	}
	return map[string]any{"server": values}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	var overrides []map[string]any
	if o := serveOverrides(cmd); o != nil {
		overrides = append(overrides, o)
	}
	cfg, err := config.Load(ctx, overrides...)
	if err != nil {
		return apperrors.WrapConfigInvalid(ctx, err, "config load failed")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return apperrors.NewConfigInvalidError("telegram.token is required (set WGBOT_BOT_TOKEN or BOT_TOKEN)")
	}

	observability.InitServerLogger(identity.BinaryName, logLevel(cfg.Logging.Level), namespace)
	observability.InitAuditLogger(identity.BinaryName, namespace)
	log := observability.Redacting(observability.ServerLogger)
	audit := observability.Redacting(observability.AuditLogger)

	metricsPort := 0
	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			log.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.WrapInternal(ctx, err, "metrics initialization failed")
		}
		metricsPort = observability.GetMetricsPort()
	}

	log.Info("Starting bot",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Int("metrics_port", metricsPort))

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Error("Failed to open store", zap.Error(err))
		return err
	}

	api, me, err := newTelegramClient(ctx, cfg.Telegram)
	if err != nil {
		_ = db.Close()
		log.Error("Telegram credential check failed", zap.Error(err))
		return apperrors.WrapExternalService(ctx, err, "telegram getMe failed")
	}
	log.Info("Authorized with Telegram", zap.String("bot_username", me.Username), zap.Int64("bot_id", me.ID))

	// The poller checker needs the runner, so /health reads the manager
	// once it exists. Both are set before the runner starts.
	var health *handlers.HealthManager
	app := buildBot(cfg, botDeps{
		API:       api,
		Store:     db,
		WireGuard: newWireGuard(cfg.WireGuard),
		Logger:    log,
		Audit:     audit,

		BotUsername: me.Username,
		Health: commands.HealthFunc(func(ctx context.Context) map[string]string {
			return health.Check(ctx, handlers.ScopeAggregate)
		}),
		Build: commands.BuildInfo{
			Name:        identity.BinaryName,
			Version:     versionInfo.Version,
			Commit:      versionInfo.Commit,
			BuildDate:   versionInfo.BuildDate,
			BotUsername: me.Username,
		},
	})
	health = newHealthManager(db, app, cfg.Metrics.Enabled)

	var srv *server.Server
	if cfg.Health.Enabled {
		srv = server.New(server.Options{
			Config:      cfg.Server,
			Health:      health,
			Build:       handlers.BuildInfo{Version: versionInfo.Version, Commit: versionInfo.Commit, BuildDate: versionInfo.BuildDate},
			Identity:    identity,
			Bot:         &handlers.BotInfo{Username: me.Username, ID: me.ID},
			MetricsPort: metricsPort,
			Logger:      log,
		})
	}

	runCtx, stopRunner := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	errChan := make(chan error, 3)

	var stopOnce sync.Once
	stop := func(ctx context.Context) error {
		var stopErr error
		stopOnce.Do(func() {
			log.Info("Stopping bot runner...")
			stopRunner()
			select {
			case <-runnerDone:
			case <-ctx.Done():
				log.Warn("Runner did not stop before the shutdown deadline")
			}

			if srv != nil {
				log.Info("Shutting down HTTP server...")
				if err := srv.Shutdown(ctx); err != nil {
					stopErr = apperrors.WrapInternal(ctx, err, "server shutdown failed")
				}
			}

			if err := db.Close(); err != nil {
				log.Warn("Store close returned error", zap.Error(err))
			}
		})
		return stopErr
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	// LIFO: registered first, runs last.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.ServerLogger.Sync(); err != nil {
			observability.ServerLogger.Debug("Logger sync returned error (may be benign)", zap.Error(err))
		}
		_ = observability.AuditLogger.Sync()
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return stop(shutdownCtx)
	})

	signals.OnReload(func(ctx context.Context) error {
		log.Info("Received SIGHUP: re-reading configuration")
		if _, err := config.Load(ctx, overrides...); err != nil {
			log.Error("Config reload failed", zap.Error(err))
			return apperrors.WrapConfigInvalid(ctx, err, "config reload failed")
		}
		log.Info("Configuration re-read; restart to apply changes to the running bot")
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		log.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	metrics.SetServerStartTime(time.Now().Unix())

	go func() {
		defer close(runnerDone)
		errChan <- app.Runner.Run(runCtx)
	}()

	if srv != nil {
		go func() {
			log.Info("Starting health server", zap.String("addr", srv.Addr()))
			if err := srv.Start(); err != nil {
				errChan <- err
			}
		}()
	}

	go func() {
		errChan <- signals.Listen(ctx)
	}()

	runErr := <-errChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(shutdownCtx); err != nil {
		log.Error("Shutdown failed", zap.Error(err))
	}

	if runErr != nil {
		log.Error("Bot stopped with error", zap.Error(runErr))
		return apperrors.WrapInternal(ctx, runErr, "bot stopped")
	}
	log.Info("Bot stopped")
	return nil
}

// openStore opens the database and applies migrations.
func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// newHealthManager registers the bot's checkers against the scopes they gate.
func newHealthManager(db handlers.Pinger, app *botApp, telemetryEnabled bool) *handlers.HealthManager {
	hm := handlers.NewHealthManager(versionInfo.Version)
	hm.RegisterChecker("store", handlers.StoreChecker{Store: db}, handlers.ScopeReady, handlers.ScopeStartup)
	hm.RegisterChecker("poller", handlers.PollerChecker{Poller: app.Runner}, handlers.ScopeLive, handlers.ScopeReady)
	hm.RegisterChecker("app_identity", handlers.IdentityChecker{Identity: GetAppIdentity()}, handlers.ScopeStartup)
	if telemetryEnabled {
		hm.RegisterChecker("telemetry", handlers.TelemetryChecker{}, handlers.ScopeReady)
	}
	return hm
}
