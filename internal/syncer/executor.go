package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/provider"
)

// Execute runs one claimed job. A returned error fails the job unless it is
// a domain.RetryableError; a Delayed outcome puts it back on the queue.
func (s *Service) Execute(ctx context.Context, job *domain.SyncJob) (domain.Outcome, error) {
	outcome, err := s.execute(ctx, job)
	if err != nil && provider.IsTransient(err) {
		return outcome, domain.NewRetryableError(err)
	}
	return outcome, err
}

func (s *Service) execute(ctx context.Context, job *domain.SyncJob) (domain.Outcome, error) {
	if err := domain.CheckPayloadKind(job.Kind, job.Payload); err != nil {
		return domain.Outcome{}, err
	}

	switch p := job.Payload.(type) {
	case domain.SearchPayload:
		return s.runSearch(ctx, job, p.Filter)
	case domain.SingleProfilePayload:
		return s.runSingleProfile(ctx, job, p.ProfileID)
	case domain.ExportStartPayload:
		return s.runExportStart(ctx, job, p.Params)
	case domain.ExportStatusCheckPayload:
		return s.runExportStatusCheck(ctx, job, p.ExportID)
	default:
		return domain.Outcome{}, fmt.Errorf("%w: unsupported payload %T", domain.ErrInvalidPayload, job.Payload)
	}
}

func (s *Service) runSearch(ctx context.Context, job *domain.SyncJob, filter domain.SearchFilter) (domain.Outcome, error) {
	page, err := s.provider.SearchProfiles(ctx, filter)
	if err != nil {
		return domain.Outcome{}, err
	}

	s.logger.Info("Search returned profiles",
		slog.String("job_id", job.JobID),
		slog.Int("count", len(page.Records)),
		slog.Int("total", page.Total),
	)

	return domain.Completed(s.fanOut(ctx, job.JobID, page.Records)), nil
}

// runSingleProfile refreshes a stored influencer by fetching each of its
// linked platform accounts. A link that cannot be fetched only lowers the
// success count; the job fails when nothing at all comes back.
func (s *Service) runSingleProfile(ctx context.Context, job *domain.SyncJob, influencerID string) (domain.Outcome, error) {
	influencer, err := s.store.FindProfile(ctx, influencerID)
	if err != nil {
		return domain.Outcome{}, err
	}

	targets := linkTargets(*influencer)
	if len(targets) == 0 {
		return domain.Outcome{}, fmt.Errorf("%w: influencer %s has no linked platform accounts", domain.ErrProfileNotFound, influencerID)
	}

	fetched, missed := s.fetchLinks(ctx, targets)
	if len(fetched) == 0 {
		return domain.Outcome{}, fmt.Errorf("%w: no platform data returned for influencer %s", domain.ErrProfileNotFound, influencerID)
	}

	if err := s.mergeInto(ctx, influencer, fetched); err != nil {
		return domain.Outcome{}, err
	}

	return domain.Completed(&domain.JobResult{
		SuccessCount: len(targets) - missed,
		FailCount:    missed,
	}), nil
}

func (s *Service) runExportStart(ctx context.Context, job *domain.SyncJob, params domain.ExportParams) (domain.Outcome, error) {
	task, err := s.provider.StartExport(ctx, params)
	if err != nil {
		return domain.Outcome{}, err
	}

	check, err := s.queue.Enqueue(ctx, domain.JobKindExportStatusCheck, domain.ExportStatusCheckPayload{ExportID: task.ExportID}, domain.EnqueueOptions{
		Priority: job.Priority,
		Delay:    s.config.StatusCheckDelay,
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("export %s started but status check was not enqueued: %w", task.ExportID, err)
	}

	s.logger.Info("Export started",
		slog.String("job_id", job.JobID),
		slog.String("export_id", task.ExportID),
		slog.String("status_check_job_id", check.JobID),
	)

	return domain.Completed(&domain.JobResult{
		ExportID: task.ExportID,
		Message:  "export started",
	}), nil
}

// runExportStatusCheck polls one export. Pending exports reschedule the same
// job; a completed export is downloaded and ingested at most once no matter
// how many checks observe it.
func (s *Service) runExportStatusCheck(ctx context.Context, job *domain.SyncJob, exportID string) (domain.Outcome, error) {
	task, err := s.provider.GetExportStatus(ctx, exportID)
	if err != nil {
		return domain.Outcome{}, err
	}

	logger := s.logger.With(
		slog.String("job_id", job.JobID),
		slog.String("export_id", exportID),
	)

	switch task.Status {
	case domain.ExportStatusFailed:
		reason := task.Error
		if reason == "" {
			reason = "provider reported failure"
		}
		return domain.Outcome{}, fmt.Errorf("%w: %s", domain.ErrExportFailed, reason)

	case domain.ExportStatusCompleted:
		if task.DownloadURL != "" {
			return s.ingestExport(ctx, job, exportID, logger)
		}
		logger.Warn("Export completed without a download url yet")
	}

	if job.Attempts+1 >= s.config.MaxExportPolls {
		return domain.Outcome{}, fmt.Errorf("%w: export %s still %s after %d checks",
			domain.ErrExportPollingExceeded, exportID, task.Status, job.Attempts+1)
	}

	logger.Info("Export not ready, rescheduling check",
		slog.String("status", string(task.Status)),
		slog.Float64("progress", task.Progress),
		slog.Duration("delay", s.config.StatusCheckDelay),
	)
	return domain.Delayed(s.config.StatusCheckDelay, "export "+string(task.Status)), nil
}

func (s *Service) ingestExport(ctx context.Context, job *domain.SyncJob, exportID string, logger *slog.Logger) (domain.Outcome, error) {
	guard := "export:ingest:" + exportID
	// Owned by the job so a run recovered after a worker crash can finish.
	acquired, err := s.locker.AcquireFor(ctx, guard, job.JobID, s.config.IngestGuardTTL)
	if err != nil {
		return domain.Outcome{}, domain.NewRetryableError(fmt.Errorf("failed to guard export ingest: %w", err))
	}
	if !acquired {
		logger.Info("Export already ingested by another job")
		return domain.Completed(&domain.JobResult{ExportID: exportID, Message: "export already ingested"}), nil
	}

	records, err := s.download(ctx, exportID)
	if err != nil {
		// Nothing was written; let a later check try again.
		if relErr := s.locker.Release(ctx, guard); relErr != nil {
			logger.Warn("Failed to release export ingest guard", slog.String("error", relErr.Error()))
		}
		return domain.Outcome{}, err
	}

	result := s.fanOut(ctx, job.JobID, records)
	result.ExportID = exportID

	logger.Info("Export ingested",
		slog.Int("success_count", result.SuccessCount),
		slog.Int("fail_count", result.FailCount),
	)
	return domain.Completed(result), nil
}

func (s *Service) download(ctx context.Context, exportID string) ([]provider.Record, error) {
	data, err := s.provider.DownloadExport(ctx, exportID)
	if err != nil {
		return nil, err
	}
	records, err := provider.DecodeExport(data)
	if err != nil {
		return nil, err
	}
	return records, nil
}
