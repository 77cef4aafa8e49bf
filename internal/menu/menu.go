// Package menu implements the main-menu registry: an ordered catalog of
// feature entry points, cached rendered keyboards per (language, role), and
// best-effort dispatch of menu button presses to their owning module.
package menu

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/daylog/internal/transport"
)

// PayloadPrefix tags menu button payloads: "menu:<key>".
const PayloadPrefix = "menu:"

// HandlerFunc handles one menu-triggered event.
type HandlerFunc func(ctx context.Context, ev transport.Event) error

// Resolver looks up a named handler in a named module. Resolution happens
// at dispatch time, not registration time, so modules and the registry may
// initialize in any order.
type Resolver interface {
	Lookup(module, handler string) (HandlerFunc, bool)
}

// Entry is one registered menu item.
type Entry struct {
	Key       string
	LabelKey  string
	Module    string
	Handler   string
	Order     int
	Enabled   bool
	AdminOnly bool
}

// Localizer resolves a label key for a language.
type Localizer interface {
	T(key, lang string, params map[string]string) string
}

type cacheKey struct {
	lang  string
	admin bool
}

// Registry holds the menu catalog and its rendered-keyboard cache.
type Registry struct {
	loc    Localizer
	logger *slog.Logger

	mu       sync.Mutex
	entries  []Entry
	resolver Resolver
	cache    map[cacheKey][][]transport.Button
}

// NewRegistry creates an empty registry.
func NewRegistry(loc Localizer, logger *slog.Logger) *Registry {
	return &Registry{
		loc:    loc,
		logger: logger,
		cache:  make(map[cacheKey][][]transport.Button),
	}
}

// SetResolver installs the module set used for dispatch. Called once after
// all modules are constructed.
func (r *Registry) SetResolver(res Resolver) {
	r.mu.Lock()
	r.resolver = res
	r.mu.Unlock()
}

// Register inserts an entry. A duplicate key is a silent no-op. Any
// successful registration invalidates the whole rendered cache.
func (r *Registry) Register(e Entry) {
	if e.Order == 0 {
		e.Order = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.Key == e.Key {
			return
		}
	}
	r.entries = append(r.entries, e)
	r.cache = make(map[cacheKey][][]transport.Button)
	r.logger.Debug("menu: registered entry", slog.String("key", e.Key))
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Invalidate clears the cached keyboards for one language, or all when
// lang is empty.
func (r *Registry) Invalidate(lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lang == "" {
		r.cache = make(map[cacheKey][][]transport.Button)
		return
	}
	delete(r.cache, cacheKey{lang: lang, admin: false})
	delete(r.cache, cacheKey{lang: lang, admin: true})
}

// Build returns the rendered keyboard for (lang, admin), two buttons per
// row, computing and caching it on first use.
func (r *Registry) Build(lang string, admin bool) [][]transport.Button {
	key := cacheKey{lang: lang, admin: admin}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rows, ok := r.cache[key]; ok {
		return rows
	}

	sorted := make([]Entry, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var rows [][]transport.Button
	var current []transport.Button
	for _, e := range sorted {
		if !e.Enabled {
			continue
		}
		if e.AdminOnly && !admin {
			continue
		}
		label := r.loc.T(e.LabelKey, lang, nil)
		if label == "" {
			label = e.LabelKey
		}
		current = append(current, transport.Button{Label: label, Data: PayloadPrefix + e.Key})
		if len(current) == 2 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}

	r.cache[key] = rows
	return rows
}

// Dispatch resolves the entry by key and invokes its handler. Unknown keys
// and missing modules/handlers are logged and swallowed: menu buttons are
// rendered optimistically, so a stale button must not surface an error.
func (r *Registry) Dispatch(ctx context.Context, key string, ev transport.Event) {
	r.mu.Lock()
	var entry *Entry
	for i := range r.entries {
		if r.entries[i].Key == key {
			entry = &r.entries[i]
			break
		}
	}
	res := r.resolver
	r.mu.Unlock()

	if entry == nil {
		r.logger.Error("menu: unknown key", slog.String("key", key))
		return
	}
	if res == nil {
		r.logger.Error("menu: no resolver installed", slog.String("key", key))
		return
	}
	h, ok := res.Lookup(entry.Module, entry.Handler)
	if !ok {
		r.logger.Error("menu: handler missing",
			slog.String("module", entry.Module), slog.String("handler", entry.Handler))
		return
	}
	if err := h(ctx, ev); err != nil {
		r.logger.Error("menu: handler failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Enable marks the entry visible again; no-op for unknown keys.
func (r *Registry) Enable(key string) { r.setEnabled(key, true) }

// Disable hides the entry from subsequent builds; no-op for unknown keys.
func (r *Registry) Disable(key string) { r.setEnabled(key, false) }

func (r *Registry) setEnabled(key string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].Key == key {
			r.entries[i].Enabled = enabled
			r.cache = make(map[cacheKey][][]transport.Button)
			return
		}
	}
}
