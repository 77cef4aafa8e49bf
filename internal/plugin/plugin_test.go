package plugin

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/daylog/internal/form"
	"github.com/starford/daylog/internal/menu"
	"github.com/starford/daylog/internal/reminder"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/testutil"
	"github.com/starford/daylog/internal/transport"
)

const adminID = 99

// keyLoc returns keys verbatim so assertions can match on them.
type keyLoc struct{}

func (keyLoc) T(key, _ string, _ map[string]string) string { return key }
func (keyLoc) Languages() []string                         { return []string{"en", "ru"} }
func (keyLoc) Has(lang string) bool                        { return lang == "en" || lang == "ru" }

type recResponder struct {
	texts     []string
	answers   []string
	keyboards [][][]transport.Button
}

func (r *recResponder) Reply(_ context.Context, text string, kb [][]transport.Button) error {
	r.texts = append(r.texts, text)
	r.keyboards = append(r.keyboards, kb)
	return nil
}

func (r *recResponder) Edit(_ context.Context, text string, kb [][]transport.Button) error {
	r.texts = append(r.texts, text)
	r.keyboards = append(r.keyboards, kb)
	return nil
}

func (r *recResponder) Answer(_ context.Context, text string) error {
	r.answers = append(r.answers, text)
	return nil
}

func (r *recResponder) Send(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func (r *recResponder) last() string {
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

func (r *recResponder) all() string { return strings.Join(r.texts, "\n---\n") }

type fakeJob struct {
	hour, minute int
	tz           string
}

type fakeCron struct {
	jobs map[int64]fakeJob
}

func (f *fakeCron) AddJob(userID int64, hour, minute int, tz string, _ func()) error {
	f.jobs[userID] = fakeJob{hour: hour, minute: minute, tz: tz}
	return nil
}

func (f *fakeCron) RemoveJob(userID int64) { delete(f.jobs, userID) }

type nopSender struct{}

func (nopSender) SendMessage(context.Context, int64, string) error { return nil }

func testSet(t *testing.T) (*Set, *store.DB, *fakeCron) {
	t.Helper()
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loc := keyLoc{}

	reg := menu.NewRegistry(loc, logger)
	engine := form.NewEngine(db, loc, logger)
	cron := &fakeCron{jobs: make(map[int64]fakeJob)}
	sched := reminder.NewScheduler(db, cron, nopSender{}, loc, logger,
		reminder.WithDefaults("UTC", "ru"))

	s := New(db, loc, logger, reg, engine, sched, Options{
		AdminIDs:    []int64{adminID},
		DefaultLang: "ru",
		DefaultTZ:   "UTC",
	})
	reg.SetResolver(s)
	s.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return s, db, cron
}

func msgEvent(userID int64, text string, r *recResponder) transport.Event {
	return transport.Event{UserID: userID, ChatID: userID, Text: text, Responder: r}
}

func cbEvent(userID int64, payload string, r *recResponder) transport.Event {
	return transport.Event{UserID: userID, ChatID: userID, Payload: payload, Responder: r}
}

func TestStart_RegistersUserAndShowsMenu(t *testing.T) {
	s, db, _ := testSet(t)
	rec := &recResponder{}

	ev := msgEvent(1, "/start", rec)
	ev.Username = "alice"
	ev.FirstName = "Alice"
	if err := s.Start(context.Background(), ev); err != nil {
		t.Fatalf("Start: %v", err)
	}

	u, _ := db.GetUser(1)
	if u == nil || u.Username != "alice" {
		t.Fatalf("user = %+v", u)
	}
	if rec.last() != "start_welcome" {
		t.Errorf("last message = %q", rec.last())
	}
	if len(rec.keyboards[0]) == 0 {
		t.Error("welcome should carry the menu keyboard")
	}
}

func TestMenuCommand_ReshowsMenuWithCurrentState(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	ctx := context.Background()

	rec := &recResponder{}
	if err := s.Menu(ctx, msgEvent(1, "/menu", rec)); err != nil {
		t.Fatalf("Menu: %v", err)
	}
	if rec.last() != "menu_title" {
		t.Errorf("last message = %q", rec.last())
	}
	if len(rec.keyboards) == 0 || len(rec.keyboards[0]) == 0 {
		t.Fatal("menu keyboard missing")
	}

	s.menu.Disable("export")
	rec = &recResponder{}
	_ = s.Menu(ctx, msgEvent(1, "/menu", rec))
	for _, row := range rec.keyboards[0] {
		for _, b := range row {
			if b.Data == menu.PayloadPrefix+"export" {
				t.Error("disabled entry still shown")
			}
		}
	}
}

func TestMenuHidesAdminEntryForRegularUsers(t *testing.T) {
	s, _, _ := testSet(t)
	flatten := func(rows [][]transport.Button) []string {
		var data []string
		for _, row := range rows {
			for _, b := range row {
				data = append(data, b.Data)
			}
		}
		return data
	}

	for _, d := range flatten(s.menu.Build("ru", false)) {
		if d == menu.PayloadPrefix+"listusers" {
			t.Error("admin entry visible to regular user")
		}
	}
	found := false
	for _, d := range flatten(s.menu.Build("ru", true)) {
		if d == menu.PayloadPrefix+"listusers" {
			found = true
		}
	}
	if !found {
		t.Error("admin entry missing for admin")
	}
}

func TestMenuLabelText_DispatchesEntry(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	rec := &recResponder{}

	handled, err := s.menuLabelText(context.Background(), msgEvent(1, "menu_today", rec), "menu_today")
	if err != nil {
		t.Fatalf("menuLabelText: %v", err)
	}
	if !handled {
		t.Fatal("label text should be handled")
	}
	if rec.last() != "today_mood_prompt" {
		t.Errorf("last message = %q, want the wizard to have started", rec.last())
	}
}

func TestWizardCallback_RoutesIntoForm(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	ctx := context.Background()
	rec := &recResponder{}

	if err := s.Today(ctx, msgEvent(1, "/today", rec)); err != nil {
		t.Fatalf("Today: %v", err)
	}
	h := s.wizardCallback("today_")
	if err := h(ctx, cbEvent(1, "today_mood_excellent", rec)); err != nil {
		t.Fatalf("wizard callback: %v", err)
	}
	if rec.last() != "today_weather_prompt" {
		t.Errorf("last message = %q, want the weather prompt", rec.last())
	}

	// Garbage payloads are answered, never routed.
	if err := h(ctx, cbEvent(1, "today_bogus", rec)); err != nil {
		t.Fatalf("bogus payload: %v", err)
	}
}

func TestToday_ExistingEntryOffersEdit(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	_ = db.CreateEntry(1, "2026-08-29", store.EntryFields{})
	rec := &recResponder{}

	if err := s.Today(context.Background(), msgEvent(1, "/today", rec)); err != nil {
		t.Fatalf("Today: %v", err)
	}
	if rec.last() != "today_entry_exists_edit" {
		t.Errorf("last message = %q", rec.last())
	}
	if s.form.InProgress(1) {
		t.Error("no session should start before the user chooses")
	}
}

func TestEditCallback_Cancel(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	rec := &recResponder{}

	h := s.editCallback("today_", 0)
	if err := h(context.Background(), cbEvent(1, "edit_today_cancel", rec)); err != nil {
		t.Fatalf("edit cancel: %v", err)
	}
	if rec.last() != "edit_canceled" {
		t.Errorf("last message = %q", rec.last())
	}
}

func TestView_DateForms(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	mood := "good"
	_ = db.CreateEntry(1, "2026-01-12", store.EntryFields{Mood: &mood})
	_ = db.CreateEntry(1, "2025-01-12", store.EntryFields{})
	ctx := context.Background()

	rec := &recResponder{}
	if err := s.View(ctx, msgEvent(1, "/view 12.01.2026", rec)); err != nil {
		t.Fatalf("View full date: %v", err)
	}
	if rec.last() != "entry_title\n\nentry_mood\nentry_weather\nentry_location\nentry_events" {
		t.Errorf("full date render = %q", rec.last())
	}

	rec = &recResponder{}
	if err := s.View(ctx, msgEvent(1, "/view 12.01.*", rec)); err != nil {
		t.Fatalf("View wildcard: %v", err)
	}
	if !strings.HasPrefix(rec.last(), "view_matches") || !strings.Contains(rec.last(), "12.01.2025") {
		t.Errorf("wildcard render = %q", rec.last())
	}

	rec = &recResponder{}
	_ = s.View(ctx, msgEvent(1, "/view 31.02.2026", rec))
	if rec.last() != "view_no_entry" {
		t.Errorf("missing date = %q", rec.last())
	}

	rec = &recResponder{}
	_ = s.View(ctx, msgEvent(1, "/view tomorrow", rec))
	if rec.last() != "view_usage" {
		t.Errorf("bad argument = %q", rec.last())
	}

	rec = &recResponder{}
	_ = s.View(ctx, msgEvent(1, "/view", rec))
	if !strings.HasPrefix(rec.last(), "view_usage") || !strings.Contains(rec.last(), "view_stats") {
		t.Errorf("no argument = %q", rec.last())
	}
}

func TestExport_FormatsAndEmpty(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	ctx := context.Background()

	rec := &recResponder{}
	if err := s.Export(ctx, msgEvent(1, "/export", rec)); err != nil {
		t.Fatalf("Export empty: %v", err)
	}
	if rec.last() != "export_empty" {
		t.Errorf("empty export = %q", rec.last())
	}

	mood := "good"
	events := "walked"
	_ = db.CreateEntry(1, "2026-08-29", store.EntryFields{Mood: &mood, Events: &events})

	rec = &recResponder{}
	if err := s.Export(ctx, msgEvent(1, "/export", rec)); err != nil {
		t.Fatalf("Export markdown: %v", err)
	}
	if !strings.Contains(rec.all(), "## 29.08.2026") {
		t.Errorf("markdown export = %q", rec.all())
	}

	format := "csv"
	_ = db.UpdateUserSettings(1, store.SettingsUpdate{ExportFormat: &format})
	rec = &recResponder{}
	if err := s.Export(ctx, msgEvent(1, "/export", rec)); err != nil {
		t.Fatalf("Export csv: %v", err)
	}
	if !strings.Contains(rec.all(), "date,mood,weather,location,events,notes") {
		t.Errorf("csv export = %q", rec.all())
	}

	format = "json"
	_ = db.UpdateUserSettings(1, store.SettingsUpdate{ExportFormat: &format})
	rec = &recResponder{}
	if err := s.Export(ctx, msgEvent(1, "/export", rec)); err != nil {
		t.Fatalf("Export json: %v", err)
	}
	if !strings.Contains(rec.all(), `"date": "2026-08-29"`) {
		t.Errorf("json export = %q", rec.all())
	}
}

func TestSettingsCallback_PresetTime(t *testing.T) {
	s, db, cron := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "UTC"})
	rec := &recResponder{}

	if err := s.settingsCallback(context.Background(), cbEvent(1, "rem:t:19:00", rec)); err != nil {
		t.Fatalf("preset time: %v", err)
	}
	job, ok := cron.jobs[1]
	if !ok || job.hour != 19 || job.minute != 0 {
		t.Fatalf("job = %+v ok=%v", job, ok)
	}
	u, _ := db.GetUser(1)
	if !u.ReminderEnabled || u.ReminderTime != "19:00" {
		t.Errorf("settings = enabled=%v time=%q", u.ReminderEnabled, u.ReminderTime)
	}
	if rec.last() != "settings_reminder_enabled" {
		t.Errorf("last message = %q", rec.last())
	}
}

func TestSettingsCallback_Disable(t *testing.T) {
	s, db, cron := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	rec := &recResponder{}
	_ = s.settingsCallback(context.Background(), cbEvent(1, "rem:t:19:00", rec))

	if err := s.settingsCallback(context.Background(), cbEvent(1, "rem:disable", rec)); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if len(cron.jobs) != 0 {
		t.Error("job still registered")
	}
	u, _ := db.GetUser(1)
	if u.ReminderEnabled {
		t.Error("settings still enabled")
	}
}

func TestSettingsCallback_TimezoneChange(t *testing.T) {
	s, db, cron := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "UTC"})
	ctx := context.Background()
	rec := &recResponder{}
	_ = s.settingsCallback(ctx, cbEvent(1, "rem:t:19:00", rec))

	if err := s.settingsCallback(ctx, cbEvent(1, "rem:tz:Asia/Novosibirsk", rec)); err != nil {
		t.Fatalf("set timezone: %v", err)
	}
	u, _ := db.GetUser(1)
	if u.Timezone != "Asia/Novosibirsk" {
		t.Errorf("timezone = %q", u.Timezone)
	}
	// The enabled reminder must follow the new zone.
	if job := cron.jobs[1]; job.tz != "Asia/Novosibirsk" || job.hour != 19 {
		t.Errorf("job after timezone change = %+v", job)
	}
	if rec.last() != "settings_tz_set" {
		t.Errorf("last message = %q", rec.last())
	}

	// An unknown zone is rejected and changes nothing.
	rec = &recResponder{}
	if err := s.settingsCallback(ctx, cbEvent(1, "rem:tz:Mars/Olympus", rec)); err != nil {
		t.Fatalf("bad timezone: %v", err)
	}
	if u, _ := db.GetUser(1); u.Timezone != "Asia/Novosibirsk" {
		t.Errorf("timezone after rejection = %q", u.Timezone)
	}
	if len(rec.answers) == 0 || rec.answers[0] != "form_invalid_state" {
		t.Errorf("answers = %v", rec.answers)
	}
}

func TestCustomTime_CaptureAndRetry(t *testing.T) {
	s, db, cron := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	ctx := context.Background()
	rec := &recResponder{}

	// Not pending yet: free text passes through.
	handled, err := s.customTimeText(ctx, msgEvent(1, "20:30", rec), "20:30")
	if err != nil || handled {
		t.Fatalf("not pending: handled=%v err=%v", handled, err)
	}

	_ = s.settingsCallback(ctx, cbEvent(1, "rem:custom", rec))

	// Invalid input keeps the capture armed.
	handled, err = s.customTimeText(ctx, msgEvent(1, "half past eight", rec), "half past eight")
	if err != nil || !handled {
		t.Fatalf("invalid input: handled=%v err=%v", handled, err)
	}
	if rec.last() != "settings_time_invalid" {
		t.Errorf("last message = %q", rec.last())
	}

	handled, err = s.customTimeText(ctx, msgEvent(1, "20:30", rec), "20:30")
	if err != nil || !handled {
		t.Fatalf("valid input: handled=%v err=%v", handled, err)
	}
	if job := cron.jobs[1]; job.hour != 20 || job.minute != 30 {
		t.Errorf("job = %+v", job)
	}
	u, _ := db.GetUser(1)
	if u.ReminderTime != "20:30" {
		t.Errorf("persisted time = %q", u.ReminderTime)
	}

	// Capture is disarmed after success.
	handled, _ = s.customTimeText(ctx, msgEvent(1, "21:00", rec), "21:00")
	if handled {
		t.Error("capture should be one-shot")
	}
}

func TestSetLangCallback(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	rec := &recResponder{}

	if err := s.setLangCallback(context.Background(), cbEvent(1, "setlang_en", rec)); err != nil {
		t.Fatalf("setlang: %v", err)
	}
	u, _ := db.GetUser(1)
	if u.LanguageCode != "en" {
		t.Errorf("language = %q", u.LanguageCode)
	}

	// Unknown codes are answered, not persisted.
	if err := s.setLangCallback(context.Background(), cbEvent(1, "setlang_xx", rec)); err != nil {
		t.Fatalf("unknown code: %v", err)
	}
	u, _ = db.GetUser(1)
	if u.LanguageCode != "en" {
		t.Errorf("unknown code persisted: %q", u.LanguageCode)
	}
}

func TestListUsers_AdminGate(t *testing.T) {
	s, db, _ := testSet(t)
	_ = db.CreateUser(store.NewUser{ID: 1, Username: "alice"})
	_ = db.CreateUser(store.NewUser{ID: adminID})
	ctx := context.Background()

	rec := &recResponder{}
	if err := s.ListUsers(ctx, msgEvent(1, "/listusers", rec)); err != nil {
		t.Fatalf("ListUsers as user: %v", err)
	}
	if rec.last() != "admin_only" {
		t.Errorf("non-admin got %q", rec.last())
	}

	rec = &recResponder{}
	if err := s.ListUsers(ctx, msgEvent(adminID, "/listusers", rec)); err != nil {
		t.Fatalf("ListUsers as admin: %v", err)
	}
	if !strings.Contains(rec.last(), "@alice") {
		t.Errorf("admin listing = %q", rec.last())
	}
}
