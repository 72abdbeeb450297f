package bot

import (
	"context"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
)

// Handler processes one event.
type Handler func(ctx context.Context, ev *Event) error

// Handle calls h, letting a bare Handler serve as an EventHandler.
func (h Handler) Handle(ctx context.Context, ev *Event) error {
	return h(ctx, ev)
}

// Middleware wraps the rest of the chain. Implementations either call next
// exactly once or return without calling it to short-circuit.
type Middleware interface {
	Process(ctx context.Context, ev *Event, next Handler) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, ev *Event, next Handler) error

func (f MiddlewareFunc) Process(ctx context.Context, ev *Event, next Handler) error {
	return f(ctx, ev, next)
}

// Stages names the pipeline's middleware in their fixed order, outermost
// first. Nil stages are skipped.
type Stages struct {
	Errors    Middleware
	Auth      Middleware
	RateLimit Middleware
	Audit     Middleware
	// Extra runs innermost, directly around the handler.
	Extra []Middleware
}

func (s Stages) ordered() []Middleware {
	out := make([]Middleware, 0, 4+len(s.Extra))
	for _, m := range []Middleware{s.Errors, s.Auth, s.RateLimit, s.Audit} {
		if m != nil {
			out = append(out, m)
		}
	}
	for _, m := range s.Extra {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Pipeline runs every inbound event through the composed chain.
type Pipeline struct {
	chain Handler
}

// NewPipeline composes stages around handler once, at construction.
func NewPipeline(handler Handler, stages Stages) *Pipeline {
	return &Pipeline{chain: Chain(handler, stages.ordered()...)}
}

// Chain wraps handler with middlewares; the first middleware is outermost.
func Chain(handler Handler, middlewares ...Middleware) Handler {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		m, next := middlewares[i], h
		h = func(ctx context.Context, ev *Event) error {
			return m.Process(ctx, ev, next)
		}
	}
	return h
}

// Handle processes ev. It attaches a fresh RequestContext and correlation id
// before entering the chain.
func (p *Pipeline) Handle(ctx context.Context, ev *Event) error {
	rc := newRequestContext(ctx, ev)
	ctx = observability.WithCorrelationID(ctx, rc.CorrelationID)
	ctx = WithRequest(ctx, rc)
	return p.chain(ctx, ev)
}
