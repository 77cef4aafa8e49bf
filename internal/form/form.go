// Package form implements the diary entry wizard: a per-user state machine
// driving the mood → weather → location → events flow, including skip/back/
// cancel handling, free-text capture, and the edit-mode variant over an
// existing record.
package form

import (
	"log/slog"
	"time"

	"github.com/starford/daylog/internal/store"
)

// Step is the wizard state. StepNone means the user has no active session.
type Step int

const (
	StepNone Step = iota
	StepMood
	StepWeather
	StepLocation
	StepEvents
)

var stepNames = map[Step]string{
	StepMood:     "mood",
	StepWeather:  "weather",
	StepLocation: "location",
	StepEvents:   "events",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "none"
}

// ParseStep maps a payload segment back to a Step.
func ParseStep(name string) (Step, bool) {
	for s, n := range stepNames {
		if n == name {
			return s, true
		}
	}
	return StepNone, false
}

// EventsMode is the edit submode for the events field: how the next free
// text combines with the stored value.
type EventsMode int

const (
	ModeNone EventsMode = iota
	ModeReplace
	ModeAppend
	ModeRewrite
)

// Localizer resolves message keys for a language.
type Localizer interface {
	T(key, lang string, params map[string]string) string
}

// DefaultSessionTTL bounds abandoned sessions: a wizard untouched for this
// long is treated as cancelled.
const DefaultSessionTTL = 24 * time.Hour

// Engine owns every form session and is the only writer of diary content.
type Engine struct {
	db     store.Store
	loc    Localizer
	logger *slog.Logger

	sessions *sessionStore
	now      func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithSessionTTL overrides the abandoned-session expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.sessions.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.sessions.now = now
	}
}

// NewEngine creates the wizard engine.
func NewEngine(db store.Store, loc Localizer, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:       db,
		loc:      loc,
		logger:   logger,
		sessions: newSessionStore(DefaultSessionTTL, time.Now),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InProgress reports whether the user currently has an active session.
func (e *Engine) InProgress(userID int64) bool {
	return e.sessions.get(userID) != nil
}
