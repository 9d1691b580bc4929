// Package scheduler runs the periodic settlement jobs.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config holds the cron specs for each job.
type Config struct {
	OutboxSchedule        string
	StaleApprovedSchedule string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron *cron.Cron
	jobs *Jobs
	cfg  Config
	log  zerolog.Logger
}

// NewScheduler creates a scheduler whose jobs recover from panics.
func NewScheduler(jobs *Jobs, cfg Config, baseLogger *zerolog.Logger) *Scheduler {
	log := baseLogger.With().Str("component", "scheduler").Logger()
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log: log})), cron.WithLogger(cronLogger{log: log}))

	return &Scheduler{
		cron: c,
		jobs: jobs,
		cfg:  cfg,
		log:  log,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{name: "debit_outbox_drain", schedule: s.cfg.OutboxSchedule, run: s.jobs.DrainDebitOutbox},
		{name: "stale_approved_report", schedule: s.cfg.StaleApprovedSchedule, run: s.jobs.ReportStaleApproved},
	}

	for _, e := range entries {
		if e.schedule == "" {
			s.log.Info().Str("job", e.name).Msg("Job disabled")
			continue
		}
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", e.name, err)
		}
		s.log.Info().Str("job", e.name).Str("schedule", e.schedule).Msg("Scheduled job")
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
