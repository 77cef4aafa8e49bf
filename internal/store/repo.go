package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/daylog/internal/apperr"
)

// DateKey formats a calendar date the way diary_entries.entry_date stores it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// User is a users row joined with the user's settings.
type User struct {
	ID               int64
	Username         string
	FirstName        string
	LastName         string
	LanguageCode     string
	Timezone         string
	LastReminderDate string
	ReminderTime     string
	ReminderEnabled  bool
	ExportFormat     string
	DateFormat       string
}

// Entry is one diary record. Optional fields are nil when never filled in.
type Entry struct {
	UserID    int64
	Date      string
	Mood      *string
	Weather   *string
	Location  *string
	Events    *string
	Notes     *string
	UpdatedAt time.Time
}

// EntryFields carries the scalar fields of an entry write. Nil fields are
// left untouched by UpdateEntry and stored as NULL by CreateEntry.
type EntryFields struct {
	Mood     *string
	Weather  *string
	Location *string
	Events   *string
	Notes    *string
}

// NewUser carries the profile fields captured at registration.
type NewUser struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Language  string
	Timezone  string
}

// CreateUser upserts the user row and seeds default settings.
func (db *DB) CreateUser(u NewUser) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO users (user_id, username, first_name, last_name, language_code, timezone, last_activity)
		VALUES (?, ?, ?, ?, COALESCE(NULLIF(?, ''), 'ru'), COALESCE(NULLIF(?, ''), 'Europe/Moscow'), datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			username      = excluded.username,
			first_name    = excluded.first_name,
			last_name     = excluded.last_name,
			last_activity = excluded.last_activity
	`, u.ID, u.Username, u.FirstName, u.LastName, u.Language, u.Timezone)
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}

	if _, err := tx.Exec(`INSERT OR IGNORE INTO user_settings (user_id) VALUES (?)`, u.ID); err != nil {
		return fmt.Errorf("store: seed settings: %w", err)
	}

	return tx.Commit()
}

// GetUser returns the user joined with settings, or nil when unknown.
func (db *DB) GetUser(id int64) (*User, error) {
	row := db.conn.QueryRow(`
		SELECT u.user_id, COALESCE(u.username, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
		       u.language_code, u.timezone, COALESCE(u.last_reminder_date, ''),
		       COALESCE(s.reminder_time, '21:00'), COALESCE(s.reminder_enabled, 0),
		       COALESCE(s.export_format, 'markdown'), COALESCE(s.date_format, 'DD.MM.YYYY')
		FROM users u
		LEFT JOIN user_settings s ON u.user_id = s.user_id
		WHERE u.user_id = ?
	`, id)

	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName,
		&u.LanguageCode, &u.Timezone, &u.LastReminderDate,
		&u.ReminderTime, &u.ReminderEnabled, &u.ExportFormat, &u.DateFormat)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user %d: %w", id, err)
	}
	return &u, nil
}

// SetLanguage updates the persisted language of the user.
func (db *DB) SetLanguage(id int64, lang string) error {
	_, err := db.conn.Exec(`UPDATE users SET language_code = ? WHERE user_id = ?`, lang, id)
	if err != nil {
		return fmt.Errorf("store: set language: %w", err)
	}
	return nil
}

// SetTimezone updates the persisted IANA timezone of the user.
func (db *DB) SetTimezone(id int64, tz string) error {
	_, err := db.conn.Exec(`UPDATE users SET timezone = ? WHERE user_id = ?`, tz, id)
	if err != nil {
		return fmt.Errorf("store: set timezone: %w", err)
	}
	return nil
}

// SetLastReminderDate persists the "last sent" marker for the given local date.
func (db *DB) SetLastReminderDate(id int64, date string) error {
	_, err := db.conn.Exec(`UPDATE users SET last_reminder_date = ? WHERE user_id = ?`, date, id)
	if err != nil {
		return fmt.Errorf("store: set last reminder date: %w", err)
	}
	return nil
}

// SettingsUpdate carries optional settings fields; nil means keep current.
type SettingsUpdate struct {
	ReminderTime    *string
	ReminderEnabled *bool
	ExportFormat    *string
	DateFormat      *string
}

// UpdateUserSettings applies the non-nil fields of the update.
func (db *DB) UpdateUserSettings(id int64, s SettingsUpdate) error {
	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if s.ReminderTime != nil {
		set = append(set, "reminder_time = ?")
		args = append(args, *s.ReminderTime)
	}
	if s.ReminderEnabled != nil {
		set = append(set, "reminder_enabled = ?")
		args = append(args, *s.ReminderEnabled)
	}
	if s.ExportFormat != nil {
		set = append(set, "export_format = ?")
		args = append(args, *s.ExportFormat)
	}
	if s.DateFormat != nil {
		set = append(set, "date_format = ?")
		args = append(args, *s.DateFormat)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := db.conn.Exec(`UPDATE user_settings SET `+strings.Join(set, ", ")+` WHERE user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update settings: %w", err)
	}
	return nil
}

// CreateEntry inserts a new diary record; unset fields are stored as NULL.
func (db *DB) CreateEntry(userID int64, date string, f EntryFields) error {
	_, err := db.conn.Exec(`
		INSERT INTO diary_entries (user_id, entry_date, mood, weather, location, events, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`, userID, date, f.Mood, f.Weather, f.Location, f.Events, f.Notes)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("store: entry %s: %w", date, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: create entry %s: %w", date, err)
	}
	return nil
}

// GetEntry returns the record for (user, date), or nil when absent.
func (db *DB) GetEntry(userID int64, date string) (*Entry, error) {
	row := db.conn.QueryRow(`
		SELECT user_id, entry_date, mood, weather, location, events, notes, updated_at
		FROM diary_entries WHERE user_id = ? AND entry_date = ?
	`, userID, date)

	var e Entry
	err := row.Scan(&e.UserID, &e.Date, &e.Mood, &e.Weather, &e.Location, &e.Events, &e.Notes, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get entry %s: %w", date, err)
	}
	return &e, nil
}

// UpdateEntry applies the non-nil fields to an existing record. Returns
// false when no record exists for (user, date).
func (db *DB) UpdateEntry(userID int64, date string, f EntryFields) (bool, error) {
	set := make([]string, 0, 5)
	args := make([]any, 0, 7)
	for col, v := range map[string]*string{
		"mood": f.Mood, "weather": f.Weather, "location": f.Location,
		"events": f.Events, "notes": f.Notes,
	} {
		if v != nil {
			set = append(set, col+" = ?")
			args = append(args, *v)
		}
	}
	if len(set) == 0 {
		return false, nil
	}
	args = append(args, userID, date)

	res, err := db.conn.Exec(`
		UPDATE diary_entries SET `+strings.Join(set, ", ")+`, updated_at = datetime('now')
		WHERE user_id = ? AND entry_date = ?
	`, args...)
	if err != nil {
		return false, fmt.Errorf("store: update entry %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListEntries returns all records of the user ordered by date ascending.
func (db *DB) ListEntries(userID int64) ([]Entry, error) {
	rows, err := db.conn.Query(`
		SELECT user_id, entry_date, mood, weather, location, events, notes, updated_at
		FROM diary_entries WHERE user_id = ? ORDER BY entry_date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// FindEntriesByDayMonth returns the user's records matching a day and month
// across all years, ordered by date ascending.
func (db *DB) FindEntriesByDayMonth(userID int64, day, month int) ([]Entry, error) {
	pattern := fmt.Sprintf("%%-%02d-%02d", month, day)
	rows, err := db.conn.Query(`
		SELECT user_id, entry_date, mood, weather, location, events, notes, updated_at
		FROM diary_entries WHERE user_id = ? AND entry_date LIKE ? ORDER BY entry_date ASC
	`, userID, pattern)
	if err != nil {
		return nil, fmt.Errorf("store: find by day/month: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.Date, &e.Mood, &e.Weather, &e.Location,
			&e.Events, &e.Notes, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UserStats summarizes one user's diary.
type UserStats struct {
	Entries   int
	FirstDate string
	LastDate  string
}

// GetUserStats returns entry count and date range for the user. Zero-value
// stats when the user has no entries.
func (db *DB) GetUserStats(userID int64) (UserStats, error) {
	var s UserStats
	err := db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(MIN(entry_date), ''), COALESCE(MAX(entry_date), '')
		FROM diary_entries WHERE user_id = ?
	`, userID).Scan(&s.Entries, &s.FirstDate, &s.LastDate)
	if err != nil {
		return UserStats{}, fmt.Errorf("store: user stats: %w", err)
	}
	return s, nil
}

// UsersWithReminders returns every user with reminders enabled, for job
// re-registration at startup.
func (db *DB) UsersWithReminders() ([]User, error) {
	rows, err := db.conn.Query(`
		SELECT u.user_id, COALESCE(u.username, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
		       u.language_code, u.timezone, COALESCE(u.last_reminder_date, ''),
		       s.reminder_time, s.reminder_enabled,
		       s.export_format, s.date_format
		FROM users u
		JOIN user_settings s ON u.user_id = s.user_id
		WHERE s.reminder_enabled = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store: users with reminders: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName,
			&u.LanguageCode, &u.Timezone, &u.LastReminderDate,
			&u.ReminderTime, &u.ReminderEnabled, &u.ExportFormat, &u.DateFormat); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListUsers returns registered users ordered by id, up to limit.
func (db *DB) ListUsers(limit int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT u.user_id, COALESCE(u.username, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
		       u.language_code, u.timezone, COALESCE(u.last_reminder_date, ''),
		       COALESCE(s.reminder_time, '21:00'), COALESCE(s.reminder_enabled, 0),
		       COALESCE(s.export_format, 'markdown'), COALESCE(s.date_format, 'DD.MM.YYYY')
		FROM users u
		LEFT JOIN user_settings s ON u.user_id = s.user_id
		ORDER BY u.user_id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName,
			&u.LanguageCode, &u.Timezone, &u.LastReminderDate,
			&u.ReminderTime, &u.ReminderEnabled, &u.ExportFormat, &u.DateFormat); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
