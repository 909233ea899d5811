package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ScheduleSearchSync enqueues a one-off search sync.
func (s *Service) ScheduleSearchSync(ctx context.Context, filter domain.SearchFilter) (*domain.SyncJob, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.queue.Enqueue(ctx, domain.JobKindSearch, domain.SearchPayload{Filter: filter}, domain.EnqueueOptions{
		Priority: domain.PriorityNormal,
	})
}

// ScheduleSingleProfileSync enqueues a refresh of one stored influencer.
func (s *Service) ScheduleSingleProfileSync(ctx context.Context, profileID string) (*domain.SyncJob, error) {
	if profileID == "" {
		return nil, domain.NewValidationError("profileId", "profile id is required")
	}
	return s.queue.Enqueue(ctx, domain.JobKindSingleProfile, domain.SingleProfilePayload{ProfileID: profileID}, domain.EnqueueOptions{
		Priority: domain.PriorityNormal,
	})
}

// ScheduleExport enqueues the start of a bulk export.
func (s *Service) ScheduleExport(ctx context.Context, params domain.ExportParams) (*domain.SyncJob, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.queue.Enqueue(ctx, domain.JobKindExportStart, domain.ExportStartPayload{Params: params}, domain.EnqueueOptions{
		Priority: domain.PriorityNormal,
	})
}

// ScheduleRecurringSync registers a cron-driven search and fires its first run
// immediately. Registering the same name twice keeps the original schedule.
func (s *Service) ScheduleRecurringSync(ctx context.Context, name string, filter domain.SearchFilter, cronExpr string) (*domain.SyncSchedule, *domain.SyncJob, error) {
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}
	if cronExpr == "" {
		return nil, nil, domain.NewValidationError("cronSchedule", "cron schedule is required")
	}
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return nil, nil, domain.NewValidationError("cronSchedule", fmt.Sprintf("invalid cron expression: %v", err))
	}
	if name == "" {
		name = "recurring-" + uuid.NewString()
	}

	schedule, err := s.store.EnsureSchedule(ctx, &domain.SyncSchedule{
		ScheduleID: uuid.NewString(),
		Name:       name,
		CronExpr:   cronExpr,
		Filter:     filter,
		Priority:   domain.PriorityLow,
		Active:     true,
	})
	if err != nil {
		return nil, nil, err
	}

	// An existing schedule with a run in flight keeps that run.
	job, err := s.FireSchedule(ctx, schedule)
	if errors.Is(err, ErrScheduleBusy) {
		return schedule, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return schedule, job, nil
}

// GetJob returns one job.
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	return s.queue.Get(ctx, jobID)
}

// ListJobs returns one page of jobs and the cursor for the next one.
func (s *Service) ListJobs(ctx context.Context, filter domain.JobFilter) ([]*domain.SyncJob, *domain.JobCursor, error) {
	return s.queue.List(ctx, filter)
}

// ListSchedules returns every registered recurring schedule.
func (s *Service) ListSchedules(ctx context.Context) ([]*domain.SyncSchedule, error) {
	return s.store.ListSchedules(ctx, false)
}

// Platforms, Topics and Locations pass provider reference data through.
func (s *Service) Platforms(ctx context.Context) ([]domain.DictionaryEntry, error) {
	return s.provider.GetPlatforms(ctx)
}

func (s *Service) Topics(ctx context.Context) ([]domain.DictionaryEntry, error) {
	return s.provider.GetTopics(ctx)
}

func (s *Service) Locations(ctx context.Context) ([]domain.DictionaryEntry, error) {
	return s.provider.GetLocations(ctx)
}
