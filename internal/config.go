package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Telegram TelegramConfig    `yaml:"telegram"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Locales  LocalesConfig     `yaml:"locales"`
	Reminder ReminderConfig    `yaml:"reminder"`
	Admin    AdminConfig       `yaml:"admin"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Telegram.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Locales.Validate(); err != nil {
		return err
	}
	return c.Reminder.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level   `yaml:"log_level"`
	Health   HealthConfig `yaml:"health"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.Health.Validate()
}

// HealthConfig holds the health endpoint listener configuration.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// Address returns the health listener address.
func (c *HealthConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the health configuration.
func (c *HealthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// TelegramConfig holds the bot transport configuration.
type TelegramConfig struct {
	Token       string `yaml:"token"`
	PollTimeout int    `yaml:"poll_timeout"`
}

// PollDuration returns the long-poll timeout as a duration.
func (c *TelegramConfig) PollDuration() time.Duration {
	if c.PollTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.PollTimeout) * time.Second
}

// Validate validates the telegram configuration.
func (c *TelegramConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.PollTimeout, validation.Min(0), validation.Max(300)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LocalesConfig holds the locale directory and default language.
type LocalesConfig struct {
	Path    string `yaml:"path"`
	Default string `yaml:"default"`
}

// Validate validates the locales configuration.
func (c *LocalesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Default, validation.Required),
	)
}

// ReminderConfig holds reminder defaults applied to users without an
// explicit timezone.
type ReminderConfig struct {
	Timezone string `yaml:"timezone"`
}

// Validate validates the reminder configuration.
func (c *ReminderConfig) Validate() error {
	if c.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("reminder: invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// AdminConfig lists the user ids allowed to use admin features.
type AdminConfig struct {
	IDs []int64 `yaml:"ids"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Health: HealthConfig{
				Port: 8080,
			},
		},
		Telegram: TelegramConfig{
			PollTimeout: 10,
		},
		SQLite: SQLiteConfig{
			Path: "./daylog.db",
		},
		Locales: LocalesConfig{
			Path:    "./locales",
			Default: "ru",
		},
		Reminder: ReminderConfig{
			Timezone: "Europe/Moscow",
		},
	}
}
