package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/bot"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/commands"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/engine"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/store"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/telegram"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/wireguard"
)

// botStore is the persistence the pipeline and handlers share. *store.Store
// implements it.
type botStore interface {
	bot.ProfileStore
	bot.AuditSink
	commands.ClientStore
	commands.AuditLog
}

var _ botStore = (*store.Store)(nil)

// botDeps are the external collaborators of the bot pipeline.
type botDeps struct {
	API       *telegram.Client
	Store     botStore
	WireGuard commands.WireGuard
	Logger    observability.Logger
	Audit     observability.Logger

	// BotUsername comes from getMe.
	BotUsername string
	// Health backs the admin /health command.
	Health commands.HealthReporter
	Build  commands.BuildInfo
}

// botApp is a fully wired bot: pipeline stages, handlers and the runner.
type botApp struct {
	Limiter  engine.Limiter
	Report   *bot.ErrorReport
	Pipeline *bot.Pipeline
	Runner   *bot.Runner
}

// newLimiter picks the per-identity limiter for the configured mode.
func newLimiter(cfg config.RateLimitConfig) engine.Limiter {
	if cfg.Mode == config.RateLimitModeSliding {
		return engine.NewSlidingWindowLimiter(cfg.CommandsPerMinute, cfg.Window)
	}
	policy := engine.DefaultPenaltyPolicy(cfg.CommandsPerMinute)
	if cfg.Window > 0 {
		policy.Window = cfg.Window
	}
	if cfg.BasePenalty > 0 {
		policy.BasePenalty = cfg.BasePenalty
	}
	if cfg.MaxPenalty > 0 {
		policy.MaxPenalty = cfg.MaxPenalty
	}
	if cfg.CleanPeriod > 0 {
		policy.CleanPeriod = cfg.CleanPeriod
	}
	return engine.NewProgressivePenaltyLimiter(policy)
}

func allowList(ids []int64) []core.Identity {
	out := make([]core.Identity, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Identity(id))
	}
	return out
}

// buildBot composes the middleware chain in its fixed order: errors, auth,
// rate limit, audit, handler.
func buildBot(cfg *config.Config, deps botDeps) *botApp {
	log := deps.Logger
	if log == nil {
		log = observability.NopLogger{}
	}
	audit := deps.Audit
	if audit == nil {
		audit = log
	}

	retry := bot.NewRetryingCaller(bot.RetryPolicy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}, log)
	responder := bot.NewResponder(deps.API, retry)

	limiter := newLimiter(cfg.RateLimit)
	report := bot.NewErrorReport()

	app := &botApp{Limiter: limiter, Report: report}

	var (
		profiles bot.ProfileStore
		sink     bot.AuditSink
		history  commands.AuditLog
	)
	if deps.Store != nil {
		profiles = deps.Store
		sink = deps.Store
		history = deps.Store
	}

	gate := bot.NewAuthorizationGate(bot.GateOptions{
		AllowList: allowList(cfg.Auth.AllowedUsers),
		AdminID:   core.Identity(cfg.Auth.AdminIdentity()),
		Profiles:  profiles,
		Notifier:  responder,
		Logger:    log,
		Security:  audit,
	})
	if gate.OpenMode() {
		log.Warn("auth.allowed_users is empty: every Telegram user may use the bot")
	}

	classifier := bot.NewErrorClassifier(bot.ClassifierOptions{
		Logger:   log,
		Notifier: responder,
		Report:   report,
		OnFatal: func(err error) {
			if app.Runner != nil {
				app.Runner.Fatal(err)
			}
		},
	})

	router := bot.NewRouter()
	commands.New(commands.Options{
		Replier:    responder,
		Clients:    deps.Store,
		WireGuard:  deps.WireGuard,
		Report:     report,
		Limiter:    limiter,
		MaxClients: cfg.WireGuard.MaxClients,
		Interface:  cfg.WireGuard.Interface,
		Logger:     log,
		Audit:      history,
		Health:     deps.Health,
		Build:      deps.Build,
	}).Register(router)

	app.Pipeline = bot.NewPipeline(router.Handle, bot.Stages{
		Errors:    classifier,
		Auth:      gate,
		RateLimit: bot.NewRateLimitGate(limiter, responder, log, nil),
		Audit:     bot.NewAuditRecorder(audit, sink, log),
	})

	app.Runner = bot.NewRunner(bot.RunnerOptions{
		Source:        deps.API,
		Handler:       app.Pipeline,
		Workers:       cfg.Workers,
		PollTimeout:   cfg.Telegram.PollTimeout,
		Logger:        log,
		BotUsername:   deps.BotUsername,
		Limiter:       limiter,
		SweepInterval: cfg.RateLimit.SweepInterval,
	})

	log.Info("Bot pipeline ready",
		zap.String("rate_limit_mode", cfg.RateLimit.Mode),
		zap.Int("commands_per_minute", cfg.RateLimit.CommandsPerMinute),
		zap.Int("allowed_users", len(cfg.Auth.AllowedUsers)),
		zap.Strings("commands", router.Commands()))
	return app
}

// newTelegramClient builds the API client and checks the token with getMe.
func newTelegramClient(ctx context.Context, cfg config.TelegramConfig) (*telegram.Client, *telegram.User, error) {
	client := telegram.NewClient(telegram.Options{
		BaseURL:        cfg.APIURL,
		Token:          cfg.Token,
		RequestTimeout: cfg.RequestTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
		SendRate:       cfg.SendRate,
		SendBurst:      cfg.SendBurst,
	})

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	me, err := client.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("getMe: %w", err)
	}
	return client, me, nil
}

func newWireGuard(cfg config.WireGuardConfig) *wireguard.Manager {
	return wireguard.New(cfg.ManagerPath, cfg.Interface, cfg.CommandTimeout)
}
