// Package jobs runs the periodic maintenance work of the server: purging
// expired sessions and sweeping expired cache entries.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"smartledger/internal/cache"
	"smartledger/internal/log"
)

// SessionPurger deletes sessions past their expiry.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler wraps a cron runner with the server's maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
	// timeout bounds a single job run.
	timeout time.Duration
}

// NewScheduler registers the session purge and the cache sweep on schedule,
// a standard cron expression or descriptor such as "@every 1h".
func NewScheduler(schedule string, sessions SessionPurger, caches cache.Group, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Scheduler{
		cron:    cron.New(),
		logger:  logger.WithComponent(log.ComponentJobs),
		timeout: time.Minute,
	}

	if sessions != nil {
		if _, err := s.cron.AddFunc(schedule, func() { s.PurgeSessions(context.Background(), sessions) }); err != nil {
			return nil, fmt.Errorf("schedule session purge %q: %w", schedule, err)
		}
	}
	if len(caches) > 0 {
		if _, err := s.cron.AddFunc(schedule, func() { s.SweepCaches(caches) }); err != nil {
			return nil, fmt.Errorf("schedule cache sweep %q: %w", schedule, err)
		}
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting job scheduler", "jobs", len(s.cron.Entries()))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Job scheduler stopped")
	return nil
}

// PurgeSessions runs one session purge.
func (s *Scheduler) PurgeSessions(ctx context.Context, sessions SessionPurger) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := sessions.PurgeExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Session purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Purged expired sessions", "count", n)
	}
}

// SweepCaches drops expired entries from every cache in the group.
func (s *Scheduler) SweepCaches(caches cache.Group) {
	if n := caches.CleanExpired(); n > 0 {
		s.logger.Debug("Swept expired cache entries", "count", n)
	}
}
