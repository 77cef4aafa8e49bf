package form

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Session is one user's in-progress wizard. It lives only in memory and is
// lost on restart.
type Session struct {
	UserID int64
	Step   Step
	Date   string
	Prefix string
	Lang   string

	EditMode bool

	Mood     *string
	Weather  *string
	Location *string
	Events   *string

	// PendingManual names the field awaiting a free-text message, or
	// StepNone when no manual input is expected.
	PendingManual Step
	EventsMode    EventsMode

	touched time.Time
}

// setStep moves the session to a new step. Any pending free-text capture or
// events submode belongs to the step being left, so both are dropped; a
// duplicate-delivered button press must not leave a capture armed for a step
// the user is no longer on.
func (sess *Session) setStep(step Step) {
	sess.Step = step
	sess.PendingManual = StepNone
	sess.EventsMode = ModeNone
}

// sessionStore owns the per-user session map. At most one session per user;
// expired sessions are treated as absent everywhere.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration, now func() time.Time) *sessionStore {
	return &sessionStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      now,
	}
}

// get returns the live session for the user, or nil. An expired session is
// removed on access.
func (s *sessionStore) get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.touched) > s.ttl {
		delete(s.sessions, userID)
		return nil
	}
	return sess
}

// put stores the session, replacing any previous one for the user.
func (s *sessionStore) put(sess *Session) {
	s.mu.Lock()
	sess.touched = s.now()
	s.sessions[sess.UserID] = sess
	s.mu.Unlock()
}

// touch refreshes the TTL clock of a live session.
func (s *sessionStore) touch(sess *Session) {
	s.mu.Lock()
	sess.touched = s.now()
	s.mu.Unlock()
}

func (s *sessionStore) delete(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// sweep drops every expired session and returns how many were removed.
func (s *sessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper periodically removes abandoned sessions until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := e.sessions.sweep(); n > 0 {
				e.logger.Info("form: swept abandoned sessions", slog.Int("count", n))
			}
		}
	}
}
