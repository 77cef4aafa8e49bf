package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/testutil"
)

type fakeJob struct {
	hour, minute int
	tz           string
	fn           func()
}

// fakeCron records jobs without any clock behind them.
type fakeCron struct {
	jobs map[int64]fakeJob
	adds int
}

func newFakeCron() *fakeCron { return &fakeCron{jobs: make(map[int64]fakeJob)} }

func (f *fakeCron) AddJob(userID int64, hour, minute int, tz string, fn func()) error {
	f.adds++
	f.jobs[userID] = fakeJob{hour: hour, minute: minute, tz: tz, fn: fn}
	return nil
}

func (f *fakeCron) RemoveJob(userID int64) {
	delete(f.jobs, userID)
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendMessage(_ context.Context, _ int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type keyLocalizer struct{}

func (keyLocalizer) T(key, _ string, _ map[string]string) string { return key }

func testScheduler(t *testing.T, opts ...Option) (*Scheduler, *store.DB, *fakeCron, *fakeSender) {
	t.Helper()
	db := testutil.TestDB(t)
	cron := newFakeCron()
	sender := &fakeSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(db, cron, sender, keyLocalizer{}, logger, opts...)
	return s, db, cron, sender
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

var fireTime = time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC)

func TestParseHHMM(t *testing.T) {
	cases := []struct {
		in           string
		hour, minute int
		ok           bool
	}{
		{"21:00", 21, 0, true},
		{"9:05", 9, 5, true},
		{"09:05", 9, 5, true},
		{"23:59", 23, 59, true},
		{"0:00", 0, 0, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"12", 0, 0, false},
		{"12:5", 0, 0, false},
		{"ab:cd", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, c := range cases {
		h, m, err := ParseHHMM(c.in)
		if c.ok {
			if err != nil {
				t.Errorf("%q: unexpected error %v", c.in, err)
			} else if h != c.hour || m != c.minute {
				t.Errorf("%q: got %d:%d, want %d:%d", c.in, h, m, c.hour, c.minute)
			}
			continue
		}
		if err == nil {
			t.Errorf("%q: expected error", c.in)
		} else if !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%q: error %v should wrap ErrInvalidInput", c.in, err)
		}
	}
}

func TestSchedule_RegistersInUserTimezone(t *testing.T) {
	s, db, cron, _ := testScheduler(t)
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "Asia/Tokyo"})

	if err := s.Schedule(1, "08:30"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	job, ok := cron.jobs[1]
	if !ok {
		t.Fatal("no job registered")
	}
	if job.hour != 8 || job.minute != 30 || job.tz != "Asia/Tokyo" {
		t.Errorf("job = %+v", job)
	}
}

func TestSchedule_InvalidTimeKeepsExistingJob(t *testing.T) {
	s, db, cron, _ := testScheduler(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	_ = s.Schedule(1, "21:00")

	err := s.Schedule(1, "25:99")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	job, ok := cron.jobs[1]
	if !ok {
		t.Fatal("prior job was lost on invalid reschedule")
	}
	if job.hour != 21 || job.minute != 0 {
		t.Errorf("job = %+v", job)
	}
}

func TestSchedule_RescheduleReplacesJob(t *testing.T) {
	s, db, cron, _ := testScheduler(t)
	_ = db.CreateUser(store.NewUser{ID: 1})

	_ = s.Schedule(1, "20:00")
	_ = s.Schedule(1, "22:15")

	if len(cron.jobs) != 1 {
		t.Fatalf("%d jobs registered, want 1", len(cron.jobs))
	}
	job := cron.jobs[1]
	if job.hour != 22 || job.minute != 15 {
		t.Errorf("job = %+v, want the latest time", job)
	}
}

func TestDisable(t *testing.T) {
	s, db, cron, _ := testScheduler(t)
	_ = db.CreateUser(store.NewUser{ID: 1})
	_ = s.Schedule(1, "21:00")

	s.Disable(1)
	if len(cron.jobs) != 0 {
		t.Error("job still registered after disable")
	}
}

func TestRestore(t *testing.T) {
	s, db, cron, _ := testScheduler(t)
	enabled := true
	_ = db.CreateUser(store.NewUser{ID: 1})
	_ = db.CreateUser(store.NewUser{ID: 2})
	_ = db.CreateUser(store.NewUser{ID: 3})
	_ = db.UpdateUserSettings(1, store.SettingsUpdate{ReminderEnabled: &enabled})
	bad := "nonsense"
	_ = db.UpdateUserSettings(3, store.SettingsUpdate{ReminderEnabled: &enabled, ReminderTime: &bad})

	if err := s.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := cron.jobs[1]; !ok {
		t.Error("enabled user not restored")
	}
	if _, ok := cron.jobs[2]; ok {
		t.Error("disabled user restored")
	}
	if _, ok := cron.jobs[3]; ok {
		t.Error("user with corrupt time should be skipped, not restored")
	}
}

func TestTrigger_SendsAndPersistsMarker(t *testing.T) {
	s, db, _, sender := testScheduler(t, fixedClock(fireTime), WithDefaults("UTC", "ru"))
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "UTC"})

	s.Trigger(context.Background(), 1)
	if len(sender.sent) != 1 || sender.sent[0] != "reminder_no_entry" {
		t.Fatalf("sent = %v", sender.sent)
	}
	u, _ := db.GetUser(1)
	if u.LastReminderDate != "2026-08-29" {
		t.Errorf("marker = %q", u.LastReminderDate)
	}
}

func TestTrigger_SkipsWhenMarkerIsToday(t *testing.T) {
	s, db, _, sender := testScheduler(t, fixedClock(fireTime), WithDefaults("UTC", "ru"))
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "UTC"})
	_ = db.SetLastReminderDate(1, "2026-08-29")

	s.Trigger(context.Background(), 1)
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.sent)
	}
}

func TestTrigger_SkipsWhenEntryExists(t *testing.T) {
	s, db, _, sender := testScheduler(t, fixedClock(fireTime), WithDefaults("UTC", "ru"))
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "UTC"})
	_ = db.CreateEntry(1, "2026-08-29", store.EntryFields{})

	s.Trigger(context.Background(), 1)
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.sent)
	}
}

func TestTrigger_SecondFireSameDayIsNoop(t *testing.T) {
	s, db, _, sender := testScheduler(t, fixedClock(fireTime), WithDefaults("UTC", "ru"))
	_ = db.CreateUser(store.NewUser{ID: 1, Timezone: "UTC"})

	s.Trigger(context.Background(), 1)
	s.Trigger(context.Background(), 1)
	if len(sender.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(sender.sent))
	}
}
