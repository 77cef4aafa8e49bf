package reminder

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Cron is the scheduling collaborator: at most one daily job per user id,
// fired at local wall-clock time in the job's timezone.
type Cron interface {
	AddJob(userID int64, hour, minute int, tz string, fn func()) error
	RemoveJob(userID int64)
}

// CronEngine implements Cron on top of robfig/cron with per-entry
// CRON_TZ timezone specs.
type CronEngine struct {
	c *cron.Cron

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

// NewCronEngine creates a stopped engine; call Run to start firing jobs.
func NewCronEngine() *CronEngine {
	return &CronEngine{
		c:       cron.New(),
		entries: make(map[int64]cron.EntryID),
	}
}

// AddJob registers a daily job for the user, replacing any existing one.
func (ce *CronEngine) AddJob(userID int64, hour, minute int, tz string, fn func()) error {
	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, minute, hour)

	ce.mu.Lock()
	defer ce.mu.Unlock()
	if id, ok := ce.entries[userID]; ok {
		ce.c.Remove(id)
		delete(ce.entries, userID)
	}
	id, err := ce.c.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("reminder: add cron job for %d: %w", userID, err)
	}
	ce.entries[userID] = id
	return nil
}

// RemoveJob drops the user's job; no-op when absent.
func (ce *CronEngine) RemoveJob(userID int64) {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if id, ok := ce.entries[userID]; ok {
		ce.c.Remove(id)
		delete(ce.entries, userID)
	}
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits
// for any in-flight job to finish.
func (ce *CronEngine) Run(ctx context.Context) error {
	ce.c.Start()
	<-ctx.Done()
	<-ce.c.Stop().Done()
	return nil
}
