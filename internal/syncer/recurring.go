package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrScheduleBusy is returned when a schedule fires while its previous run is
// still enqueued, running or delayed.
var ErrScheduleBusy = errors.New("schedule already has an active job")

// FireSchedule enqueues one run of a recurring schedule. Runs of the same
// schedule never overlap: the fire is serialized across processes by a lock,
// and skipped while an earlier run is still active.
func (s *Service) FireSchedule(ctx context.Context, schedule *domain.SyncSchedule) (*domain.SyncJob, error) {
	lockName := "schedule:" + schedule.ScheduleID
	acquired, err := s.locker.Acquire(ctx, lockName, s.config.ScheduleLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock schedule %s: %w", schedule.Name, err)
	}
	if !acquired {
		return nil, ErrScheduleBusy
	}
	defer func() {
		if err := s.locker.Release(ctx, lockName); err != nil {
			s.logger.Warn("Failed to release schedule lock",
				slog.String("schedule", schedule.Name),
				slog.String("error", err.Error()),
			)
		}
	}()

	active, err := s.store.HasActiveJobForSchedule(ctx, schedule.ScheduleID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrScheduleBusy
	}

	job, err := s.queue.Enqueue(ctx, domain.JobKindRecurringSearch, domain.SearchPayload{Filter: schedule.Filter}, domain.EnqueueOptions{
		Priority:   schedule.Priority,
		ScheduleID: schedule.ScheduleID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.SetScheduleLastJob(ctx, schedule.ScheduleID, job.JobID); err != nil {
		s.logger.Warn("Failed to record schedule run",
			slog.String("schedule", schedule.Name),
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Recurring sync fired",
		slog.String("schedule", schedule.Name),
		slog.String("job_id", job.JobID),
	)
	return job, nil
}

// EnsureSchedules registers the given schedules by name, keeping any that
// already exist untouched.
func (s *Service) EnsureSchedules(ctx context.Context, defs []domain.SyncSchedule) error {
	for _, def := range defs {
		if _, err := cron.ParseStandard(def.CronExpr); err != nil {
			return fmt.Errorf("schedule %s: invalid cron expression: %w", def.Name, err)
		}
		if err := def.Filter.Validate(); err != nil {
			return fmt.Errorf("schedule %s: %w", def.Name, err)
		}

		def.ScheduleID = uuid.NewString()
		def.Active = true
		if def.Priority == 0 {
			def.Priority = domain.PriorityLow
		}

		stored, err := s.store.EnsureSchedule(ctx, &def)
		if err != nil {
			return err
		}
		s.logger.Info("Recurring schedule registered",
			slog.String("schedule", stored.Name),
			slog.String("cron", stored.CronExpr),
		)
	}
	return nil
}

// ActiveSchedules returns the schedules the cron runner should drive.
func (s *Service) ActiveSchedules(ctx context.Context) ([]*domain.SyncSchedule, error) {
	return s.store.ListSchedules(ctx, true)
}
