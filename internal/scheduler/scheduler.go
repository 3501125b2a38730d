// Package scheduler provides cron-based scheduling for casabot.
//
// Its one production job is the daily conversation reset that clears every
// chat and timer when the kitchen closes.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultResetSpec fires the daily reset at 16:00 local time, right after
// the lunch window closes.
const DefaultResetSpec = "0 16 * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	if err == nil {
		slog.Info("Scheduler job added", "expr", expr)
	}
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("Scheduler stopped")
}
