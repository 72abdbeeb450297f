package bot

import (
	"context"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// AccessDeniedMessage is the notice sent to identities outside the allow-list.
const AccessDeniedMessage = "⛔ Access denied. You are not allowed to use this bot."

// ProfileStore resolves persisted profiles.
type ProfileStore interface {
	FindOrCreateProfile(ctx context.Context, id core.Identity, meta core.DisplayMeta, isAdmin bool, now time.Time) (*core.Profile, error)
}

// AuthResult is the outcome of an authorization check.
type AuthResult struct {
	Allowed bool
	// Profile is nil when denied or when persistence failed.
	Profile *core.Profile
}

// GateOptions configures an AuthorizationGate.
type GateOptions struct {
	// AllowList is the set of permitted identities. Empty admits everyone.
	AllowList []core.Identity
	// AdminID is the only identity ever flagged as admin. Zero means none.
	AdminID  core.Identity
	Profiles ProfileStore
	// Notifier, when set, tells denied identities why nothing happened.
	Notifier Notifier
	Logger   observability.Logger
	// Security receives denial events, kept apart from the command audit.
	Security observability.Logger
	Clock    func() time.Time
}

// AuthorizationGate admits allow-listed identities and resolves their
// profiles.
type AuthorizationGate struct {
	allowed  map[core.Identity]struct{}
	adminID  core.Identity
	profiles ProfileStore
	notifier Notifier
	logger   observability.Logger
	security observability.Logger
	clock    func() time.Time
}

// NewAuthorizationGate builds a gate from opts.
func NewAuthorizationGate(opts GateOptions) *AuthorizationGate {
	allowed := make(map[core.Identity]struct{}, len(opts.AllowList))
	for _, id := range opts.AllowList {
		allowed[id] = struct{}{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AuthorizationGate{
		allowed:  allowed,
		adminID:  opts.AdminID,
		profiles: opts.Profiles,
		notifier: opts.Notifier,
		logger:   observability.NewRedactingLogger(opts.Logger),
		security: observability.NewRedactingLogger(opts.Security),
		clock:    clock,
	}
}

// OpenMode reports whether the allow-list is empty.
func (g *AuthorizationGate) OpenMode() bool {
	return len(g.allowed) == 0
}

// Permits reports allow-list membership alone.
func (g *AuthorizationGate) Permits(id core.Identity) bool {
	if g.OpenMode() {
		return true
	}
	_, ok := g.allowed[id]
	return ok
}

// Authorize checks id and, when allowed, refreshes its profile. Persistence
// failures are logged and yield an allowed result without a profile.
func (g *AuthorizationGate) Authorize(ctx context.Context, id core.Identity, meta core.DisplayMeta) AuthResult {
	if !g.Permits(id) {
		return AuthResult{}
	}
	if g.profiles == nil {
		return AuthResult{Allowed: true}
	}

	isAdmin := g.adminID != 0 && id == g.adminID
	profile, err := g.profiles.FindOrCreateProfile(ctx, id, meta, isAdmin, g.clock())
	if err != nil {
		envelope := apperrors.WithSeverity(
			apperrors.WrapPersistence(ctx, err, "Profile lookup failed, continuing without profile"),
			gferrors.SeverityMedium,
		)
		apperrors.LogEnvelope(g.logger, envelope, zap.String("identity", id.String()))
		return AuthResult{Allowed: true}
	}
	return AuthResult{Allowed: true, Profile: profile}
}

// Process implements Middleware. Denied events stop here.
func (g *AuthorizationGate) Process(ctx context.Context, ev *Event, next Handler) error {
	result := g.Authorize(ctx, ev.Identity, ev.Meta)
	if !result.Allowed {
		metrics.RecordDenial(metrics.DenialUnauthorized)
		g.security.Warn("Unauthorized access attempt",
			zap.String("event", "access_denied"),
			zap.String("identity", ev.Identity.String()),
			zap.String("event_type", string(ev.Kind)),
			zap.String("command", ev.AuditCommand()),
			zap.Int("allow_list_size", len(g.allowed)),
			zap.String("correlation_id", observability.CorrelationID(ctx)))
		if g.notifier != nil {
			g.notifier.Notify(ctx, ev, AccessDeniedMessage)
		}
		return nil
	}

	if rc := RequestFrom(ctx); rc != nil {
		rc.Profile = result.Profile
	}
	return next(ctx, ev)
}
