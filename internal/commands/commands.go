// Package commands holds the bot's command handlers. Handlers stay thin:
// authorization, rate limiting, auditing and error replies are done by the
// pipeline around them.
package commands

import (
	"context"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/bot"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core/engine"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/wireguard"
)

// Callback data prefixes.
const (
	CallbackDeleteConfirm = "delete_confirm:"
	CallbackDeleteCancel  = "delete_cancel"
)

// ClientStore is the persistence the VPN commands need.
type ClientStore interface {
	CreateClient(ctx context.Context, client core.VPNClient) error
	GetActiveClient(ctx context.Context, name string) (*core.VPNClient, error)
	ListClients(ctx context.Context, owner core.Identity, includeInactive bool) ([]core.VPNClient, error)
	CountActiveClients(ctx context.Context) (int, error)
	DeactivateClient(ctx context.Context, name string, owner core.Identity, now time.Time) (bool, error)
}

// WireGuard is the peer manager the VPN commands drive.
type WireGuard interface {
	Add(ctx context.Context, name string) (*wireguard.AddResult, error)
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]wireguard.Peer, error)
	Status(ctx context.Context) (string, error)
	Export(ctx context.Context, name string) (*wireguard.ConfigFile, error)
}

// AuditLog reads back the command audit trail, newest first.
type AuditLog interface {
	RecentCommands(ctx context.Context, id core.Identity, limit int) ([]core.AuditEvent, error)
}

// HealthReporter runs the service health checks and returns one status per
// check.
type HealthReporter interface {
	Report(ctx context.Context) map[string]string
}

// HealthFunc adapts a function to HealthReporter.
type HealthFunc func(ctx context.Context) map[string]string

func (f HealthFunc) Report(ctx context.Context) map[string]string {
	return f(ctx)
}

// BuildInfo is what /about shows.
type BuildInfo struct {
	Name        string
	Version     string
	Commit      string
	BuildDate   string
	BotUsername string
}

// Options configures Handlers.
type Options struct {
	Replier    bot.Replier
	Clients    ClientStore
	WireGuard  WireGuard
	Report     *bot.ErrorReport
	Limiter    engine.Limiter
	MaxClients int
	Interface  string
	Logger     observability.Logger
	Clock      func() time.Time

	// Audit backs /logs; nil disables the command's history.
	Audit AuditLog
	// Health backs /health; nil reports the checks as unavailable.
	Health  HealthReporter
	Build   BuildInfo
	Started time.Time
}

// Handlers implements every bot command.
type Handlers struct {
	reply      bot.Replier
	clients    ClientStore
	wg         WireGuard
	report     *bot.ErrorReport
	limiter    engine.Limiter
	maxClients int
	iface      string
	logger     observability.Logger
	now        func() time.Time
	audit      AuditLog
	health     HealthReporter
	build      BuildInfo
	started    time.Time
}

// New returns Handlers over opts.
func New(opts Options) *Handlers {
	h := &Handlers{
		reply:      opts.Replier,
		clients:    opts.Clients,
		wg:         opts.WireGuard,
		report:     opts.Report,
		limiter:    opts.Limiter,
		maxClients: opts.MaxClients,
		iface:      opts.Interface,
		logger:     opts.Logger,
		now:        opts.Clock,
		audit:      opts.Audit,
		health:     opts.Health,
		build:      opts.Build,
		started:    opts.Started,
	}
	if h.logger == nil {
		h.logger = observability.NopLogger{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.iface == "" {
		h.iface = "wg0"
	}
	if h.started.IsZero() {
		h.started = h.now()
	}
	return h
}

// Register installs every command and callback on r.
func (h *Handlers) Register(r *bot.Router) {
	r.Command("/start", h.Start)
	r.Command("/help", h.Help)
	r.Command("/status", h.Status)
	r.Command("/newconfig", h.NewConfig)
	r.Command("/list", h.List)
	r.Command("/delete", h.Delete)
	r.Command("/getconfig", h.GetConfig)
	r.Command("/logs", h.Logs)
	r.Command("/about", h.About)
	r.Command("/errors", h.adminOnly(h.Errors))
	r.Command("/limits", h.adminOnly(h.Limits))
	r.Command("/health", h.adminOnly(h.Health))

	r.Callback(CallbackDeleteConfirm, h.DeleteConfirm)
	r.Callback(CallbackDeleteCancel, h.DeleteCancel)

	r.Unknown = h.Unknown
	r.UnknownCallback = h.UnknownCallback
}

// adminOnly rejects non-admin callers with a reply.
func (h *Handlers) adminOnly(next bot.CommandHandler) bot.CommandHandler {
	return func(ctx context.Context, ev *bot.Event, args []string) error {
		if !bot.RequestFrom(ctx).IsAdmin() {
			h.reply.Reply(ctx, ev, "🔒 This command is available to the administrator only.", nil)
			return nil
		}
		return next(ctx, ev, args)
	}
}

func isAdmin(ctx context.Context) bool {
	return bot.RequestFrom(ctx).IsAdmin()
}

// ownerScope is the owner filter for store queries: admins see everything.
func ownerScope(ctx context.Context, ev *bot.Event) core.Identity {
	if isAdmin(ctx) {
		return 0
	}
	return ev.Identity
}
