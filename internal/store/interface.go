package store

// Store defines the persistence operations the bot core depends on.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with fakes.
type Store interface {
	CreateUser(u NewUser) error
	GetUser(id int64) (*User, error)
	SetLanguage(id int64, lang string) error
	SetTimezone(id int64, tz string) error
	SetLastReminderDate(id int64, date string) error
	UpdateUserSettings(id int64, s SettingsUpdate) error
	CreateEntry(userID int64, date string, f EntryFields) error
	GetEntry(userID int64, date string) (*Entry, error)
	UpdateEntry(userID int64, date string, f EntryFields) (bool, error)
	ListEntries(userID int64) ([]Entry, error)
	FindEntriesByDayMonth(userID int64, day, month int) ([]Entry, error)
	GetUserStats(userID int64) (UserStats, error)
	UsersWithReminders() ([]User, error)
	ListUsers(limit int) ([]User, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
