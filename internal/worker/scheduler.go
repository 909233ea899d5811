package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/syncer"
	"github.com/robfig/cron/v3"
)

// ScheduleSource lists recurring schedules and fires them.
type ScheduleSource interface {
	ActiveSchedules(ctx context.Context) ([]*domain.SyncSchedule, error)
	FireSchedule(ctx context.Context, schedule *domain.SyncSchedule) (*domain.SyncJob, error)
}

// Scheduler fires recurring sync schedules on their cron expressions and
// picks up schedule changes on every reload.
type Scheduler struct {
	cron    *cron.Cron
	source  ScheduleSource
	logger  *slog.Logger
	reload  time.Duration
	mu      sync.Mutex
	entries map[string]scheduleEntry
}

// scheduleEntry is one registered cron entry and the latest copy of its
// schedule. Fires read schedule, so filter and priority edits apply without
// re-registering.
type scheduleEntry struct {
	id       cron.EntryID
	cronExpr string
	schedule *domain.SyncSchedule
}

// NewScheduler creates a scheduler. Runs of the same schedule never overlap
// inside one process; FireSchedule guards across processes.
func NewScheduler(source ScheduleSource, reload time.Duration, logger *slog.Logger) *Scheduler {
	if reload <= 0 {
		reload = 5 * time.Minute
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		source:  source,
		logger:  logger,
		reload:  reload,
		entries: make(map[string]scheduleEntry),
	}
}

// Run starts the cron loop and reloads schedules until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.logger.Error("Failed to load schedules", slog.String("error", err.Error()))
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", slog.Int("schedules", s.Len()))

	ticker := time.NewTicker(s.reload)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Warn("Failed to reload schedules", slog.String("error", err.Error()))
			}
		}
	}
}

// Sync reconciles cron entries with the active schedules in storage.
func (s *Scheduler) Sync(ctx context.Context) error {
	schedules, err := s.source.ActiveSchedules(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(schedules))
	for _, schedule := range schedules {
		seen[schedule.ScheduleID] = struct{}{}

		if entry, ok := s.entries[schedule.ScheduleID]; ok {
			if entry.cronExpr == schedule.CronExpr {
				entry.schedule = schedule
				s.entries[schedule.ScheduleID] = entry
				continue
			}
			s.cron.Remove(entry.id)
			delete(s.entries, schedule.ScheduleID)
		}

		id, err := s.cron.AddFunc(schedule.CronExpr, s.fire(ctx, schedule.ScheduleID))
		if err != nil {
			s.logger.Error("Invalid cron expression, schedule skipped",
				slog.String("schedule", schedule.Name),
				slog.String("cron", schedule.CronExpr),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.entries[schedule.ScheduleID] = scheduleEntry{id: id, cronExpr: schedule.CronExpr, schedule: schedule}
		s.logger.Info("Schedule registered",
			slog.String("schedule", schedule.Name),
			slog.String("cron", schedule.CronExpr),
		)
	}

	for scheduleID, entry := range s.entries {
		if _, ok := seen[scheduleID]; !ok {
			s.cron.Remove(entry.id)
			delete(s.entries, scheduleID)
			s.logger.Info("Schedule removed", slog.String("schedule_id", scheduleID))
		}
	}

	return nil
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) fire(ctx context.Context, scheduleID string) func() {
	return func() {
		s.mu.Lock()
		entry, ok := s.entries[scheduleID]
		s.mu.Unlock()
		if !ok {
			return
		}
		schedule := entry.schedule

		job, err := s.source.FireSchedule(ctx, schedule)
		switch {
		case errors.Is(err, syncer.ErrScheduleBusy):
			s.logger.Info("Previous run still active, skipping",
				slog.String("schedule", schedule.Name),
			)
		case err != nil:
			s.logger.Error("Failed to fire schedule",
				slog.String("schedule", schedule.Name),
				slog.String("error", err.Error()),
			)
		default:
			s.logger.Info("Schedule fired",
				slog.String("schedule", schedule.Name),
				slog.String("job_id", job.JobID),
			)
		}
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
