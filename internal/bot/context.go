package bot

import (
	"context"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// RequestContext is the per-event state handed to command handlers.
type RequestContext struct {
	Identity core.Identity
	// Profile is nil until authorization resolves it, and stays nil when
	// persistence failed.
	Profile *core.Profile
	// Start carries a monotonic reading taken when the event entered the
	// pipeline.
	Start         time.Time
	CorrelationID string
}

// IsAdmin reports whether the resolved profile carries the admin flag.
func (rc *RequestContext) IsAdmin() bool {
	return rc != nil && rc.Profile != nil && rc.Profile.IsAdmin
}

// Elapsed returns the monotonic time since the event entered the pipeline.
func (rc *RequestContext) Elapsed() time.Duration {
	if rc == nil || rc.Start.IsZero() {
		return 0
	}
	return time.Since(rc.Start)
}

type requestContextKey struct{}

// WithRequest attaches rc to ctx.
func WithRequest(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestFrom returns the request context attached to ctx, or nil.
func RequestFrom(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

func newRequestContext(ctx context.Context, ev *Event) *RequestContext {
	correlationID := observability.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}
	rc := &RequestContext{Start: time.Now(), CorrelationID: correlationID}
	if ev != nil {
		rc.Identity = ev.Identity
	}
	return rc
}
