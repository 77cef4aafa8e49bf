// Package plugin wires the feature modules of the bot: registration,
// diary entry flows, date lookup, export, settings, language selection,
// and the admin surface. The Set implements menu.Resolver so the menu
// registry can late-bind button presses to handlers here.
package plugin

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/daylog/internal/bot"
	"github.com/starford/daylog/internal/form"
	"github.com/starford/daylog/internal/menu"
	"github.com/starford/daylog/internal/reminder"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

// Localizer resolves message keys for a language.
type Localizer interface {
	T(key, lang string, params map[string]string) string
	Languages() []string
	Has(lang string) bool
}

// Options carries the deployment-level knobs of the plugin set.
type Options struct {
	AdminIDs    []int64
	DefaultLang string
	DefaultTZ   string
}

// Set is the full collection of feature modules sharing one store, one
// wizard engine, and one reminder scheduler.
type Set struct {
	db     store.Store
	loc    Localizer
	logger *slog.Logger
	menu   *menu.Registry
	form   *form.Engine
	sched  *reminder.Scheduler

	admins      map[int64]struct{}
	defaultLang string
	defaultTZ   string
	now         func() time.Time

	mu          sync.Mutex
	pendingTime map[int64]struct{}

	handlers map[string]menu.HandlerFunc
}

// New builds the plugin set and registers its menu entries.
func New(db store.Store, loc Localizer, logger *slog.Logger, reg *menu.Registry,
	engine *form.Engine, sched *reminder.Scheduler, opts Options) *Set {

	s := &Set{
		db:          db,
		loc:         loc,
		logger:      logger,
		menu:        reg,
		form:        engine,
		sched:       sched,
		admins:      make(map[int64]struct{}, len(opts.AdminIDs)),
		defaultLang: opts.DefaultLang,
		defaultTZ:   opts.DefaultTZ,
		now:         time.Now,
		pendingTime: make(map[int64]struct{}),
	}
	if s.defaultLang == "" {
		s.defaultLang = "ru"
	}
	if s.defaultTZ == "" {
		s.defaultTZ = "Europe/Moscow"
	}
	for _, id := range opts.AdminIDs {
		s.admins[id] = struct{}{}
	}

	s.handlers = map[string]menu.HandlerFunc{
		"diary.today":     s.Today,
		"diary.yesterday": s.Yesterday,
		"view.view":       s.View,
		"export.export":   s.Export,
		"settings.show":   s.Settings,
		"setlang.show":    s.SetLang,
		"admin.listusers": s.ListUsers,
	}

	reg.Register(menu.Entry{Key: "today", LabelKey: "menu_today", Module: "diary", Handler: "today", Order: 10, Enabled: true})
	reg.Register(menu.Entry{Key: "yesterday", LabelKey: "menu_yesterday", Module: "diary", Handler: "yesterday", Order: 20, Enabled: true})
	reg.Register(menu.Entry{Key: "view", LabelKey: "menu_view", Module: "view", Handler: "view", Order: 30, Enabled: true})
	reg.Register(menu.Entry{Key: "export", LabelKey: "menu_export", Module: "export", Handler: "export", Order: 40, Enabled: true})
	reg.Register(menu.Entry{Key: "settings", LabelKey: "menu_settings", Module: "settings", Handler: "show", Order: 50, Enabled: true})
	reg.Register(menu.Entry{Key: "language", LabelKey: "menu_language", Module: "setlang", Handler: "show", Order: 60, Enabled: true})
	reg.Register(menu.Entry{Key: "listusers", LabelKey: "menu_listusers", Module: "admin", Handler: "listusers", Order: 900, Enabled: true, AdminOnly: true})

	return s
}

// Lookup implements menu.Resolver.
func (s *Set) Lookup(module, handler string) (menu.HandlerFunc, bool) {
	h, ok := s.handlers[module+"."+handler]
	return h, ok
}

// Mount attaches every route of the plugin set to the dispatcher. Route
// order matters only within the free-text chain: the wizard gets first
// claim on a message, then a pending custom-time capture, then menu
// button labels typed as plain text.
func (s *Set) Mount(d *bot.Dispatcher) {
	d.Command("/start", s.Start)
	d.Command("/menu", s.Menu)
	d.Command("/today", s.Today)
	d.Command("/yesterday", s.Yesterday)
	d.Command("/view", s.View)
	d.Command("/export", s.Export)
	d.Command("/settings", s.Settings)
	d.Command("/setlang", s.SetLang)
	d.Command("/listusers", s.ListUsers)

	d.Callback(menu.PayloadPrefix, s.menuCallback)
	d.Callback(form.CancelPayload, s.cancelCallback)
	d.Callback("edit_today_", s.editCallback("today_", 0))
	d.Callback("edit_yesterday_", s.editCallback("yesterday_", -1))
	d.Callback("today_", s.wizardCallback("today_"))
	d.Callback("yesterday_", s.wizardCallback("yesterday_"))
	d.Callback("rem:", s.settingsCallback)
	d.Callback("setlang_", s.setLangCallback)

	d.Text(func(ctx context.Context, ev transport.Event, text string) (bool, error) {
		return s.form.HandleText(ctx, ev, text, s.lang(ev))
	})
	d.Text(s.customTimeText)
	d.Text(s.menuLabelText)
}

func (s *Set) isAdmin(id int64) bool {
	_, ok := s.admins[id]
	return ok
}

// lang resolves the user's persisted language, falling back to the
// deployment default for users not yet registered.
func (s *Set) lang(ev transport.Event) string {
	u, err := s.db.GetUser(ev.UserID)
	if err != nil {
		s.logger.Error("plugin: resolve language", slog.Int64("user_id", ev.UserID), slog.String("error", err.Error()))
	}
	if u == nil || u.LanguageCode == "" {
		return s.defaultLang
	}
	return u.LanguageCode
}

// userToday returns the current calendar time in the user's timezone.
func (s *Set) userToday(userID int64) time.Time {
	tz := s.defaultTZ
	if u, err := s.db.GetUser(userID); err == nil && u != nil && u.Timezone != "" {
		tz = u.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return s.now().In(loc)
}

func (s *Set) menuCallback(ctx context.Context, ev transport.Event) error {
	key := strings.TrimPrefix(ev.Payload, menu.PayloadPrefix)
	s.menu.Dispatch(ctx, key, ev)
	return nil
}

func (s *Set) cancelCallback(ctx context.Context, ev transport.Event) error {
	return s.form.Cancel(ctx, ev, s.lang(ev))
}

// menuLabelText matches plain text against the user's rendered menu labels,
// so tapping a reply-keyboard label or typing it verbatim works like the
// inline button.
func (s *Set) menuLabelText(ctx context.Context, ev transport.Event, text string) (bool, error) {
	lang := s.lang(ev)
	for _, row := range s.menu.Build(lang, s.isAdmin(ev.UserID)) {
		for _, b := range row {
			if b.Label == text {
				s.menu.Dispatch(ctx, strings.TrimPrefix(b.Data, menu.PayloadPrefix), ev)
				return true, nil
			}
		}
	}
	return false, nil
}

// respond edits the originating message for button presses and replies
// with a fresh message for typed commands.
func respond(ctx context.Context, ev transport.Event, text string, keyboard [][]transport.Button) error {
	if ev.IsCallback() {
		return ev.Responder.Edit(ctx, text, keyboard)
	}
	return ev.Responder.Reply(ctx, text, keyboard)
}
