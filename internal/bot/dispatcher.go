// Package bot implements the event dispatcher: a single-goroutine loop
// consuming decoded transport events and routing them to command, callback,
// and free-text handlers. Handling is strictly sequential, so per-user
// session mutations are never observed half-done by another event.
package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/starford/daylog/internal/transport"
)

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, ev transport.Event) error

// TextHandler consumes a free-text message; it reports whether the message
// was handled so the next handler in the chain may take it otherwise.
type TextHandler func(ctx context.Context, ev transport.Event, text string) (bool, error)

type callbackRoute struct {
	prefix string
	h      HandlerFunc
}

// Dispatcher is the routing table plus the event loop.
type Dispatcher struct {
	logger    *slog.Logger
	commands  map[string]HandlerFunc
	callbacks []callbackRoute
	texts     []TextHandler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		commands: make(map[string]HandlerFunc),
	}
}

// Command routes messages whose first word is the given command ("/today").
func (d *Dispatcher) Command(name string, h HandlerFunc) {
	d.commands[name] = h
}

// Callback routes button payloads by prefix. The longest matching prefix
// wins, so "edit_today_" takes precedence over "edit_".
func (d *Dispatcher) Callback(prefix string, h HandlerFunc) {
	d.callbacks = append(d.callbacks, callbackRoute{prefix: prefix, h: h})
	sort.SliceStable(d.callbacks, func(i, j int) bool {
		return len(d.callbacks[i].prefix) > len(d.callbacks[j].prefix)
	})
}

// Text appends a handler to the free-text fallback chain.
func (d *Dispatcher) Text(h TextHandler) {
	d.texts = append(d.texts, h)
}

// Run consumes events until ctx is cancelled or the source closes.
func (d *Dispatcher) Run(ctx context.Context, events <-chan transport.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			d.handle(ctx, ev)
		}
	}
}

// handle dispatches one event. Panics and handler errors are contained
// here: nothing an individual handler does may stop the loop.
func (d *Dispatcher) handle(ctx context.Context, ev transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("bot: handler panic",
				slog.Int64("user_id", ev.UserID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if ev.IsCallback() {
		for _, r := range d.callbacks {
			if strings.HasPrefix(ev.Payload, r.prefix) {
				if err := r.h(ctx, ev); err != nil {
					d.logger.Error("bot: callback handler failed",
						slog.String("payload", ev.Payload), slog.String("error", err.Error()))
				}
				return
			}
		}
		d.logger.Debug("bot: unrouted callback", slog.String("payload", ev.Payload))
		return
	}

	text := strings.TrimSpace(ev.Text)
	if strings.HasPrefix(text, "/") {
		name := text
		if i := strings.IndexByte(text, ' '); i > 0 {
			name = text[:i]
		}
		if h, ok := d.commands[name]; ok {
			if err := h(ctx, ev); err != nil {
				d.logger.Error("bot: command failed",
					slog.String("command", name), slog.String("error", err.Error()))
			}
			return
		}
		d.logger.Debug("bot: unknown command", slog.String("command", name))
		return
	}

	for _, h := range d.texts {
		handled, err := h(ctx, ev, text)
		if err != nil {
			d.logger.Error("bot: text handler failed", slog.String("error", err.Error()))
			return
		}
		if handled {
			return
		}
	}
}
