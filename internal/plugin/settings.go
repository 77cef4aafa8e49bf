package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

func settingsReminderEnabled(v *bool) store.SettingsUpdate {
	return store.SettingsUpdate{ReminderEnabled: v}
}

func settingsExportFormat(v *string) store.SettingsUpdate {
	return store.SettingsUpdate{ExportFormat: v}
}

var presetTimes = []string{"18:00", "19:00", "20:00", "21:00", "22:00"}

var presetZones = []string{
	"Europe/Moscow", "Europe/Kyiv",
	"Europe/Berlin", "Asia/Yekaterinburg",
	"Asia/Novosibirsk", "UTC",
}

// Settings shows the current reminder and export configuration.
func (s *Set) Settings(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)
	text, keyboard, err := s.settingsView(ev.UserID, lang)
	if err != nil {
		return err
	}
	return respond(ctx, ev, text, keyboard)
}

func (s *Set) settingsView(userID int64, lang string) (string, [][]transport.Button, error) {
	u, err := s.db.GetUser(userID)
	if err != nil {
		return "", nil, fmt.Errorf("plugin: load settings: %w", err)
	}

	remTime, format, tz := "21:00", "markdown", s.defaultTZ
	status := s.loc.T("settings_status_off", lang, nil)
	if u != nil {
		if u.ReminderTime != "" {
			remTime = u.ReminderTime
		}
		if u.ExportFormat != "" {
			format = u.ExportFormat
		}
		if u.Timezone != "" {
			tz = u.Timezone
		}
		if u.ReminderEnabled {
			status = s.loc.T("settings_status_on", lang, nil)
		}
	}

	text := s.loc.T("settings_current", lang, map[string]string{
		"time":   remTime,
		"status": status,
		"format": format,
		"tz":     tz,
	})
	keyboard := [][]transport.Button{
		{s.btn("settings_btn_set_time", lang, "rem:set")},
		{s.btn("settings_btn_disable", lang, "rem:disable")},
		{s.btn("settings_btn_format", lang, "rem:fmt")},
		{s.btn("settings_btn_timezone", lang, "rem:tz")},
	}
	return text, keyboard, nil
}

func (s *Set) btn(labelKey, lang, data string) transport.Button {
	return transport.Button{Label: s.loc.T(labelKey, lang, nil), Data: data}
}

// settingsCallback handles every "rem:" button: time presets, the custom
// time capture, disabling, and export format selection.
func (s *Set) settingsCallback(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)

	switch {
	case ev.Payload == "rem:set":
		rows := [][]transport.Button{
			{presetBtn(presetTimes[0]), presetBtn(presetTimes[1])},
			{presetBtn(presetTimes[2]), presetBtn(presetTimes[3])},
			{presetBtn(presetTimes[4]), s.btn("settings_btn_custom", lang, "rem:custom")},
			{s.btn("btn_back", lang, "rem:back")},
		}
		return ev.Responder.Edit(ctx, s.loc.T("settings_pick_time", lang, nil), rows)

	case strings.HasPrefix(ev.Payload, "rem:t:"):
		return s.enableReminder(ctx, ev, strings.TrimPrefix(ev.Payload, "rem:t:"), lang)

	case ev.Payload == "rem:custom":
		s.mu.Lock()
		s.pendingTime[ev.UserID] = struct{}{}
		s.mu.Unlock()
		return ev.Responder.Edit(ctx, s.loc.T("settings_custom_prompt", lang, nil), nil)

	case ev.Payload == "rem:disable":
		s.sched.Disable(ev.UserID)
		enabled := false
		if err := s.db.UpdateUserSettings(ev.UserID, settingsReminderEnabled(&enabled)); err != nil {
			return fmt.Errorf("plugin: disable reminder: %w", err)
		}
		return ev.Responder.Edit(ctx, s.loc.T("settings_reminder_disabled", lang, nil), nil)

	case ev.Payload == "rem:fmt":
		rows := [][]transport.Button{
			{rawBtn("Markdown", "rem:fmt:markdown"), rawBtn("CSV", "rem:fmt:csv")},
			{rawBtn("JSON", "rem:fmt:json"), s.btn("btn_back", lang, "rem:back")},
		}
		return ev.Responder.Edit(ctx, s.loc.T("settings_pick_format", lang, nil), rows)

	case strings.HasPrefix(ev.Payload, "rem:fmt:"):
		format := strings.TrimPrefix(ev.Payload, "rem:fmt:")
		if err := s.db.UpdateUserSettings(ev.UserID, settingsExportFormat(&format)); err != nil {
			return fmt.Errorf("plugin: set export format: %w", err)
		}
		return ev.Responder.Edit(ctx,
			s.loc.T("settings_format_set", lang, map[string]string{"format": format}), nil)

	case ev.Payload == "rem:tz":
		rows := make([][]transport.Button, 0, len(presetZones)/2+1)
		for i := 0; i+1 < len(presetZones); i += 2 {
			rows = append(rows, []transport.Button{
				rawBtn(presetZones[i], "rem:tz:"+presetZones[i]),
				rawBtn(presetZones[i+1], "rem:tz:"+presetZones[i+1]),
			})
		}
		rows = append(rows, []transport.Button{s.btn("btn_back", lang, "rem:back")})
		return ev.Responder.Edit(ctx, s.loc.T("settings_pick_tz", lang, nil), rows)

	case strings.HasPrefix(ev.Payload, "rem:tz:"):
		return s.setTimezone(ctx, ev, strings.TrimPrefix(ev.Payload, "rem:tz:"), lang)

	case ev.Payload == "rem:back":
		text, keyboard, err := s.settingsView(ev.UserID, lang)
		if err != nil {
			return err
		}
		return ev.Responder.Edit(ctx, text, keyboard)
	}

	return ev.Responder.Answer(ctx, s.loc.T("form_invalid_state", lang, nil))
}

func presetBtn(hhmm string) transport.Button {
	return transport.Button{Label: hhmm, Data: "rem:t:" + hhmm}
}

func rawBtn(label, data string) transport.Button {
	return transport.Button{Label: label, Data: data}
}

// enableReminder validates and schedules the time, then persists it. The
// cron job is only touched after validation succeeds, so an invalid input
// never loses an existing schedule.
func (s *Set) enableReminder(ctx context.Context, ev transport.Event, hhmm, lang string) error {
	if err := s.sched.Schedule(ev.UserID, hhmm); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			return respond(ctx, ev, s.loc.T("settings_time_invalid", lang, nil), nil)
		}
		return fmt.Errorf("plugin: schedule reminder: %w", err)
	}

	enabled := true
	update := settingsReminderEnabled(&enabled)
	update.ReminderTime = &hhmm
	if err := s.db.UpdateUserSettings(ev.UserID, update); err != nil {
		return fmt.Errorf("plugin: persist reminder time: %w", err)
	}
	return respond(ctx, ev,
		s.loc.T("settings_reminder_enabled", lang, map[string]string{"time": hhmm}), nil)
}

// setTimezone persists the zone and, for a live reminder, re-registers the
// job so it fires on the new wall clock.
func (s *Set) setTimezone(ctx context.Context, ev transport.Event, tz, lang string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return ev.Responder.Answer(ctx, s.loc.T("form_invalid_state", lang, nil))
	}
	if err := s.db.SetTimezone(ev.UserID, tz); err != nil {
		return fmt.Errorf("plugin: set timezone: %w", err)
	}

	if u, err := s.db.GetUser(ev.UserID); err == nil && u != nil && u.ReminderEnabled {
		if err := s.sched.Schedule(ev.UserID, u.ReminderTime); err != nil {
			s.logger.Error("plugin: reschedule after timezone change",
				slog.Int64("user_id", ev.UserID), slog.String("error", err.Error()))
		}
	}
	return ev.Responder.Edit(ctx,
		s.loc.T("settings_tz_set", lang, map[string]string{"tz": tz}), nil)
}

// customTimeText captures the free-text HH:MM after "rem:custom". Invalid
// input keeps the capture armed so the user may retry.
func (s *Set) customTimeText(ctx context.Context, ev transport.Event, text string) (bool, error) {
	s.mu.Lock()
	_, pending := s.pendingTime[ev.UserID]
	if pending {
		delete(s.pendingTime, ev.UserID)
	}
	s.mu.Unlock()
	if !pending {
		return false, nil
	}

	lang := s.lang(ev)
	if err := s.sched.Schedule(ev.UserID, text); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			s.mu.Lock()
			s.pendingTime[ev.UserID] = struct{}{}
			s.mu.Unlock()
			return true, ev.Responder.Reply(ctx, s.loc.T("settings_time_invalid", lang, nil), nil)
		}
		return true, fmt.Errorf("plugin: schedule reminder: %w", err)
	}

	enabled := true
	update := settingsReminderEnabled(&enabled)
	update.ReminderTime = &text
	if err := s.db.UpdateUserSettings(ev.UserID, update); err != nil {
		return true, fmt.Errorf("plugin: persist reminder time: %w", err)
	}
	return true, ev.Responder.Reply(ctx,
		s.loc.T("settings_reminder_enabled", lang, map[string]string{"time": text}), nil)
}
