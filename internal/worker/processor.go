package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/metrics"
)

// processJob claims, runs and records a single job. A nil return means the
// message can be acknowledged: the job reached a terminal or delayed state,
// or it was already handled elsewhere.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	startTime := time.Now()

	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
		slog.Uint64("delivery_tag", msg.DeliveryTag),
	)

	// A redelivered delay message finds its job in the delayed state.
	if err := w.queue.Activate(ctx, msg.JobID); err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to activate job: %w", err))
	}

	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobAlreadyClaimed):
			w.logger.Info("Job already claimed or finished, skipping",
				slog.String("job_id", msg.JobID),
			)
			return nil
		case errors.Is(err, domain.ErrInvalidPayload) && job != nil:
			w.finish(ctx, job, domain.JobStatusFailed, nil, err.Error(), startTime)
			return err
		default:
			return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
		}
	}

	w.logger.Info("Job claimed",
		slog.String("job_id", job.JobID),
		slog.String("kind", string(job.Kind)),
		slog.Int("attempts", job.Attempts),
		slog.Int("retries", job.Retries),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)

	outcome, execErr := w.executor.Execute(jobCtx, job)
	close(heartbeatDone)

	// Status writes must land even when the worker is shutting down.
	writeCtx := context.WithoutCancel(ctx)

	if execErr != nil {
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			execErr = fmt.Errorf("job timed out after %s: %w", w.jobTimeout, execErr)
		}

		var retryableErr *domain.RetryableError
		if errors.As(execErr, &retryableErr) && job.Retries < w.maxRetries {
			w.logger.Warn("Job hit a transient error, retrying later",
				slog.String("job_id", job.JobID),
				slog.Int("retries", job.Retries),
				slog.Duration("retry_in", w.retryDelay),
				slog.String("error", execErr.Error()),
			)
			w.retry(writeCtx, job, execErr, startTime)
			return nil
		}

		w.logger.Error("Job failed",
			slog.String("job_id", job.JobID),
			slog.String("kind", string(job.Kind)),
			slog.Duration("duration", time.Since(startTime)),
			slog.String("error", execErr.Error()),
		)
		w.finish(writeCtx, job, domain.JobStatusFailed, nil, execErr.Error(), startTime)
		return nil
	}

	if outcome.Status == domain.JobStatusDelayed {
		w.delay(writeCtx, job, outcome.Delay, outcome.Result, startTime)
		return nil
	}

	w.logger.Info("Job completed",
		slog.String("job_id", job.JobID),
		slog.String("kind", string(job.Kind)),
		slog.Duration("duration", time.Since(startTime)),
	)
	w.finish(writeCtx, job, domain.JobStatusCompleted, outcome.Result, "", startTime)
	return nil
}

// finish writes a terminal status. A failed write leaves the job running;
// the message is still settled so it is not replayed against a claimed row.
func (w *Worker) finish(ctx context.Context, job *domain.SyncJob, status domain.JobStatus, result *domain.JobResult, errMsg string, startTime time.Time) {
	metrics.RecordJobProcessed(string(job.Kind), string(status), time.Since(startTime))

	if err := w.storage.UpdateJobStatus(ctx, job.JobID, status, result, errMsg); err != nil {
		w.logger.Error("Failed to update job status",
			slog.String("job_id", job.JobID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Worker) delay(ctx context.Context, job *domain.SyncJob, delay time.Duration, result *domain.JobResult, startTime time.Time) {
	metrics.RecordJobProcessed(string(job.Kind), string(domain.JobStatusDelayed), time.Since(startTime))

	if err := w.queue.Reschedule(ctx, job, delay, result); err != nil {
		w.logger.Error("Failed to reschedule job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Job rescheduled",
		slog.String("job_id", job.JobID),
		slog.String("kind", string(job.Kind)),
		slog.Duration("delay", delay),
	)
}

func (w *Worker) retry(ctx context.Context, job *domain.SyncJob, execErr error, startTime time.Time) {
	metrics.RecordJobProcessed(string(job.Kind), "retried", time.Since(startTime))

	if err := w.queue.Retry(ctx, job, w.retryDelay, execErr.Error()); err != nil {
		w.logger.Error("Failed to schedule job retry",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to send heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			} else {
				w.logger.Debug("Heartbeat sent",
					slog.String("job_id", jobID),
				)
			}
		}
	}
}
