// Package reminder maintains one daily reminder job per user. Triggers are
// idempotent per local calendar day: a persisted "last sent" marker and the
// presence of a diary entry both suppress the send, so restarts and late
// fires never double-notify.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

var hhmmRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseHHMM parses a strict "HH:MM" wall-clock time.
func ParseHHMM(value string) (hour, minute int, err error) {
	m := hhmmRe.FindStringSubmatch(value)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: time %q", apperr.ErrInvalidInput, value)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// Localizer resolves message keys for a language.
type Localizer interface {
	T(key, lang string, params map[string]string) string
}

// Scheduler owns the per-user reminder jobs.
type Scheduler struct {
	db     store.Store
	cron   Cron
	sender transport.Sender
	loc    Localizer
	logger *slog.Logger

	defaultTZ   string
	defaultLang string
	now         func() time.Time
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithDefaults overrides the fallback timezone and language.
func WithDefaults(tz, lang string) Option {
	return func(s *Scheduler) {
		s.defaultTZ = tz
		s.defaultLang = lang
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler over the given cron collaborator.
func NewScheduler(db store.Store, c Cron, sender transport.Sender, loc Localizer, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:          db,
		cron:        c,
		sender:      sender,
		loc:         loc,
		logger:      logger,
		defaultTZ:   "Europe/Moscow",
		defaultLang: "ru",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers (or replaces) the user's daily job at the given
// "HH:MM" in the user's timezone. Invalid time input is rejected before the
// cron is touched, so a prior job survives a bad reschedule attempt.
func (s *Scheduler) Schedule(userID int64, hhmm string) error {
	hour, minute, err := ParseHHMM(hhmm)
	if err != nil {
		return err
	}

	tz := s.defaultTZ
	if u, err := s.db.GetUser(userID); err == nil && u != nil && u.Timezone != "" {
		tz = u.Timezone
	}

	s.cron.RemoveJob(userID)
	if err := s.cron.AddJob(userID, hour, minute, tz, func() {
		s.Trigger(context.Background(), userID)
	}); err != nil {
		return err
	}
	s.logger.Info("reminder: scheduled",
		slog.Int64("user_id", userID), slog.String("time", hhmm), slog.String("tz", tz))
	return nil
}

// Disable removes the user's job.
func (s *Scheduler) Disable(userID int64) {
	s.cron.RemoveJob(userID)
	s.logger.Info("reminder: disabled", slog.Int64("user_id", userID))
}

// Restore re-registers jobs from persisted settings. Called once at
// startup; the cron engine forgets everything across restarts.
func (s *Scheduler) Restore() error {
	users, err := s.db.UsersWithReminders()
	if err != nil {
		return fmt.Errorf("reminder: restore: %w", err)
	}
	restored := 0
	for _, u := range users {
		if err := s.Schedule(u.ID, u.ReminderTime); err != nil {
			s.logger.Warn("reminder: skip restore",
				slog.Int64("user_id", u.ID), slog.String("error", err.Error()))
			continue
		}
		restored++
	}
	s.logger.Info("reminder: jobs restored", slog.Int("count", restored))
	return nil
}

// Trigger runs one firing for the user. Settings and timezone are re-read
// at fire time; the send is suppressed when the marker already shows
// today's local date or a diary entry for today exists.
func (s *Scheduler) Trigger(ctx context.Context, userID int64) {
	u, err := s.db.GetUser(userID)
	if err != nil {
		s.logger.Error("reminder: load user", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}

	tzName := s.defaultTZ
	lang := s.defaultLang
	if u != nil {
		if u.Timezone != "" {
			tzName = u.Timezone
		}
		if u.LanguageCode != "" {
			lang = u.LanguageCode
		}
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc, err = time.LoadLocation(s.defaultTZ)
		if err != nil {
			loc = time.UTC
		}
	}
	today := store.DateKey(s.now().In(loc))

	if u != nil && u.LastReminderDate == today {
		s.logger.Debug("reminder: skip, already sent",
			slog.Int64("user_id", userID), slog.String("date", today))
		return
	}

	entry, err := s.db.GetEntry(userID, today)
	if err != nil {
		s.logger.Error("reminder: load entry", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	if entry != nil {
		s.logger.Debug("reminder: skip, entry exists",
			slog.Int64("user_id", userID), slog.String("date", today))
		return
	}

	if err := s.sender.SendMessage(ctx, userID, s.loc.T("reminder_no_entry", lang, nil)); err != nil {
		s.logger.Error("reminder: send failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	if err := s.db.SetLastReminderDate(userID, today); err != nil {
		s.logger.Error("reminder: persist marker", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	s.logger.Info("reminder: sent",
		slog.Int64("user_id", userID), slog.String("date", today), slog.String("tz", tzName))
}
