package bot

import (
	"context"
	"sort"
	"strings"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

// CommandHandler handles a "/command arg..." message.
type CommandHandler func(ctx context.Context, ev *Event, args []string) error

// CallbackHandler handles a callback whose data starts with a registered
// prefix. value is the data with the prefix removed.
type CallbackHandler func(ctx context.Context, ev *Event, value string) error

type callbackRoute struct {
	prefix  string
	handler CallbackHandler
}

// Router dispatches events to command and callback handlers. It is the
// terminal Handler of the pipeline.
type Router struct {
	commands  map[string]CommandHandler
	callbacks []callbackRoute

	// Unknown handles commands and plain messages no route matched.
	Unknown Handler
	// UnknownCallback handles callbacks no prefix matched.
	UnknownCallback Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{commands: make(map[string]CommandHandler)}
}

// Command registers h for name ("/start" or "start").
func (r *Router) Command(name string, h CommandHandler) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.commands[name] = h
}

// Callback registers h for callback data beginning with prefix. Longer
// prefixes win.
func (r *Router) Callback(prefix string, h CallbackHandler) {
	r.callbacks = append(r.callbacks, callbackRoute{prefix: prefix, handler: h})
	sort.SliceStable(r.callbacks, func(i, j int) bool {
		return len(r.callbacks[i].prefix) > len(r.callbacks[j].prefix)
	})
}

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case core.EventTypeCallback:
		if ev.Callback != nil {
			for _, route := range r.callbacks {
				if strings.HasPrefix(ev.Callback.Data, route.prefix) {
					return route.handler(ctx, ev, strings.TrimPrefix(ev.Callback.Data, route.prefix))
				}
			}
		}
		if r.UnknownCallback != nil {
			return r.UnknownCallback(ctx, ev)
		}
		return nil
	default:
		name, args := ev.Command()
		if h, ok := r.commands[name]; ok {
			return h(ctx, ev, args)
		}
		if r.Unknown != nil {
			return r.Unknown(ctx, ev)
		}
		return nil
	}
}
