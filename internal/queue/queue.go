// Package queue is the durable sync job queue: every job is a row in
// sync_jobs and a message carrying its id on the broker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/metrics"
	"github.com/cuongbtq/creator-sync/shared/rabbitmq"
	"github.com/google/uuid"
)

// Store is the job persistence the queue needs.
type Store interface {
	CreateJob(ctx context.Context, job *domain.SyncJob) error
	GetJobByID(ctx context.Context, jobID string) (*domain.SyncJob, error)
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]*domain.SyncJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, result *domain.JobResult, errorMsg string) error
	RescheduleJob(ctx context.Context, jobID string, runAt time.Time, result *domain.JobResult) error
	RetryJob(ctx context.Context, jobID string, runAt time.Time, errorMsg string) error
	PromoteDelayedJob(ctx context.Context, jobID string) (bool, error)
	ListOverdueDelayedJobs(ctx context.Context, before time.Time, limit int) ([]*domain.SyncJob, error)
	ListStaleRunningJobs(ctx context.Context, before time.Time, limit int) ([]*domain.SyncJob, error)
	ReleaseStaleJob(ctx context.Context, jobID string, before time.Time, status domain.JobStatus, errorMsg string) (bool, error)
}

// Publisher delivers job messages to the broker.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, opts rabbitmq.PublishOptions) error
}

// Queue enqueues, reschedules and inspects sync jobs.
type Queue struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Queue.
func New(store Store, publisher Publisher, logger *slog.Logger) *Queue {
	return &Queue{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Enqueue persists a new job and publishes it. A positive opts.Delay creates
// the job as delayed and routes the message through the delay queue.
func (q *Queue) Enqueue(ctx context.Context, kind domain.JobKind, payload domain.Payload, opts domain.EnqueueOptions) (*domain.SyncJob, error) {
	if err := domain.CheckPayloadKind(kind, payload); err != nil {
		return nil, err
	}

	priority := opts.Priority
	if priority == 0 {
		priority = domain.PriorityNormal
	}

	now := q.now().UTC()
	job := &domain.SyncJob{
		JobID:      uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		Priority:   priority,
		Status:     domain.JobStatusEnqueued,
		ScheduleID: opts.ScheduleID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if opts.Delay > 0 {
		runAt := now.Add(opts.Delay)
		job.Status = domain.JobStatusDelayed
		job.RunAt = &runAt
	}

	if err := q.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := q.publish(ctx, job, opts.Delay); err != nil {
		// Without a message nothing would ever pick the row up.
		if updErr := q.store.UpdateJobStatus(ctx, job.JobID, domain.JobStatusFailed, nil, err.Error()); updErr != nil {
			q.logger.Error("Failed to mark unpublished job as failed",
				slog.String("job_id", job.JobID),
				slog.String("error", updErr.Error()),
			)
		}
		return nil, err
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(string(kind)).Inc()

	q.logger.Info("Job enqueued",
		slog.String("job_id", job.JobID),
		slog.String("kind", string(kind)),
		slog.Int("priority", int(priority)),
		slog.Duration("delay", opts.Delay),
	)

	return job, nil
}

// Reschedule parks a running job as delayed and publishes its next attempt
// after delay. If publishing fails the job stays delayed and the overdue sweep
// recovers it.
func (q *Queue) Reschedule(ctx context.Context, job *domain.SyncJob, delay time.Duration, result *domain.JobResult) error {
	runAt := q.now().UTC().Add(delay)
	if err := q.store.RescheduleJob(ctx, job.JobID, runAt, result); err != nil {
		return err
	}

	return q.publish(ctx, job, delay)
}

// Retry parks a running job that hit a transient error and publishes it again
// after delay. Unlike Reschedule it does not count as a poll.
func (q *Queue) Retry(ctx context.Context, job *domain.SyncJob, delay time.Duration, errorMsg string) error {
	runAt := q.now().UTC().Add(delay)
	if err := q.store.RetryJob(ctx, job.JobID, runAt, errorMsg); err != nil {
		return err
	}

	return q.publish(ctx, job, delay)
}

// Activate moves a delayed job whose message came due back to enqueued.
func (q *Queue) Activate(ctx context.Context, jobID string) error {
	promoted, err := q.store.PromoteDelayedJob(ctx, jobID)
	if err != nil {
		return err
	}
	if promoted {
		q.logger.Debug("Delayed job is due",
			slog.String("job_id", jobID),
		)
	}
	return nil
}

// RequeueOverdue republishes delayed jobs whose run time passed more than
// grace ago. It returns how many were requeued.
func (q *Queue) RequeueOverdue(ctx context.Context, grace time.Duration, limit int) (int, error) {
	jobs, err := q.store.ListOverdueDelayedJobs(ctx, q.now().UTC().Add(-grace), limit)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range jobs {
		promoted, err := q.store.PromoteDelayedJob(ctx, job.JobID)
		if err != nil {
			return requeued, err
		}
		if !promoted {
			continue
		}
		if err := q.publish(ctx, job, 0); err != nil {
			return requeued, err
		}
		q.logger.Warn("Requeued overdue delayed job",
			slog.String("job_id", job.JobID),
			slog.String("kind", string(job.Kind)),
		)
		requeued++
	}
	return requeued, nil
}

// RecoverStale takes back running jobs whose heartbeat is older than
// staleAfter: their worker died without settling them. A job that already
// used maxRetries is failed; the rest are enqueued and published again.
// It returns how many jobs were requeued.
func (q *Queue) RecoverStale(ctx context.Context, staleAfter time.Duration, maxRetries, limit int) (int, error) {
	before := q.now().UTC().Add(-staleAfter)
	jobs, err := q.store.ListStaleRunningJobs(ctx, before, limit)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range jobs {
		if job.Retries >= maxRetries {
			released, err := q.store.ReleaseStaleJob(ctx, job.JobID, before, domain.JobStatusFailed,
				fmt.Sprintf("worker %s stopped heartbeating", job.WorkerID))
			if err != nil {
				return requeued, err
			}
			if released {
				metrics.JobsProcessedTotal.WithLabelValues(string(job.Kind), string(domain.JobStatusFailed)).Inc()
				q.logger.Error("Stale job failed after exhausting retries",
					slog.String("job_id", job.JobID),
					slog.String("worker_id", job.WorkerID),
					slog.Int("retries", job.Retries),
				)
			}
			continue
		}

		released, err := q.store.ReleaseStaleJob(ctx, job.JobID, before, domain.JobStatusEnqueued, "")
		if err != nil {
			return requeued, err
		}
		if !released {
			continue
		}
		if err := q.publish(ctx, job, 0); err != nil {
			return requeued, err
		}
		q.logger.Warn("Requeued stale running job",
			slog.String("job_id", job.JobID),
			slog.String("kind", string(job.Kind)),
			slog.String("worker_id", job.WorkerID),
		)
		requeued++
	}
	return requeued, nil
}

// Get returns one job.
func (q *Queue) Get(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	return q.store.GetJobByID(ctx, jobID)
}

// List returns one page of jobs, newest first, and the cursor for the next
// page, which is nil on the last page.
func (q *Queue) List(ctx context.Context, filter domain.JobFilter) ([]*domain.SyncJob, *domain.JobCursor, error) {
	jobs, err := q.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	if len(jobs) <= filter.PageSize {
		return jobs, nil, nil
	}

	jobs = jobs[:filter.PageSize]
	last := jobs[len(jobs)-1]
	return jobs, &domain.JobCursor{CreatedAt: last.CreatedAt, JobID: last.JobID}, nil
}

func (q *Queue) publish(ctx context.Context, job *domain.SyncJob, delay time.Duration) error {
	body, err := json.Marshal(domain.JobMessage{JobID: job.JobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	err = q.publisher.PublishWithRetry(ctx, body, rabbitmq.PublishOptions{
		ContentType: "application/json",
		MessageID:   job.JobID,
		Priority:    job.Priority,
		Delay:       delay,
	})
	if err != nil {
		return fmt.Errorf("failed to publish job %s: %w", job.JobID, err)
	}
	return nil
}
