package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/depotwatch/internal/logfields"
)

// Scheduler wraps gocron scheduler for managing periodic tasks.
//
// Jobs run in singleton mode: a tick that fires while the previous run is
// still busy is skipped and rescheduled, so runs never overlap.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleEvery registers task to run every interval, starting immediately.
// Returns the job ID for later management.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", interval)
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		s.jobOptions(name)...,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job %s: %w", name, err)
	}

	slog.Info("Scheduled periodic job",
		logfields.JobID(job.ID().String()),
		slog.String("name", name),
		slog.Duration("interval", interval))
	return job.ID().String(), nil
}

// Reschedule replaces the interval of an existing job, keeping its ID.
func (s *Scheduler) Reschedule(jobID, name string, interval time.Duration, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}

	if _, err := s.scheduler.Update(id, gocron.DurationJob(interval), gocron.NewTask(task), s.jobOptions(name)...); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", name, err)
	}

	slog.Info("Rescheduled periodic job",
		logfields.JobID(jobID),
		slog.String("name", name),
		slog.Duration("interval", interval))
	return nil
}

// NextRun reports when the job runs next.
func (s *Scheduler) NextRun(jobID string) (time.Time, bool) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return time.Time{}, false
	}
	for _, job := range s.scheduler.Jobs() {
		if job.ID() != id {
			continue
		}
		next, err := job.NextRun()
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func (s *Scheduler) jobOptions(name string) []gocron.JobOption {
	return []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	}
}
