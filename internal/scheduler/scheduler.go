// Package scheduler implements A4: the cron-driven daemon loop that
// fires an orchestration cycle on schedule. It sleeps in bounded
// quanta rather than one long timer so a cancelled context is
// observed promptly, and it runs each cycle out of process so a
// cycle's crash never takes the daemon down with it.
package scheduler

import (
	"context"
	"fmt"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/halvorsen/cuengine/internal/logging"
)

// maxSleepQuantum bounds a single wait so shutdown is observed within
// this long even while parked between scheduled runs.
const maxSleepQuantum = 10 * time.Second

// Runner performs one orchestration cycle. Returning an error does not
// stop the scheduler; it is logged and the next scheduled run proceeds
// normally.
type Runner func(ctx context.Context) error

// Scheduler fires Runner at each tick of a parsed cron schedule.
type Scheduler struct {
	schedule cron.Schedule
	run      Runner
	log      logging.Logger
	clock    Clock
}

// New parses cronExpr (standard 5-field cron, per robfig/cron's
// ParseStandard) and returns a Scheduler that will invoke run at each
// tick.
func New(cronExpr string, run Runner, log logging.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parsing cron schedule %q: %w", cronExpr, err)
	}
	return &Scheduler{schedule: sched, run: run, log: log, clock: Real{}}, nil
}

// Run blocks, firing a cycle at every scheduled tick, until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.schedule.Next(s.clock.Now())
		if err := s.sleepUntil(ctx, next); err != nil {
			return nil
		}

		s.log.Info("running scheduled cycle", "scheduledFor", next)
		if err := s.run(ctx); err != nil {
			s.log.Error("scheduled cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// sleepUntil waits until deadline in quanta no longer than
// maxSleepQuantum, returning early with an error if ctx is cancelled
// first.
func (s *Scheduler) sleepUntil(ctx context.Context, deadline time.Time) error {
	for {
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			return nil
		}
		wait := remaining
		if wait > maxSleepQuantum {
			wait = maxSleepQuantum
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(wait):
		}
	}
}
