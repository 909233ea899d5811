package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, kind, payload, priority, status, attempts, retries, schedule_id, run_at,
	worker_id, result, error_message, created_at, updated_at,
	started_at, completed_at, last_heartbeat_at
`

type jobRow struct {
	JobID           string         `db:"job_id"`
	Kind            string         `db:"kind"`
	Payload         []byte         `db:"payload"`
	Priority        int16          `db:"priority"`
	Status          string         `db:"status"`
	Attempts        int            `db:"attempts"`
	Retries         int            `db:"retries"`
	ScheduleID      sql.NullString `db:"schedule_id"`
	RunAt           sql.NullTime   `db:"run_at"`
	WorkerID        sql.NullString `db:"worker_id"`
	Result          []byte         `db:"result"`
	ErrorMessage    sql.NullString `db:"error_message"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	StartedAt       sql.NullTime   `db:"started_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
	LastHeartbeatAt sql.NullTime   `db:"last_heartbeat_at"`
}

// toDomain converts the row. A payload that does not match the kind still
// yields a job (with nil Payload) alongside an error wrapping
// domain.ErrInvalidPayload, so listings can show it and workers can fail it.
func (r jobRow) toDomain() (*domain.SyncJob, error) {
	job := &domain.SyncJob{
		JobID:           r.JobID,
		Kind:            domain.JobKind(r.Kind),
		Priority:        uint8(r.Priority),
		Status:          domain.JobStatus(r.Status),
		Attempts:        r.Attempts,
		Retries:         r.Retries,
		ScheduleID:      r.ScheduleID.String,
		RunAt:           nullTime(r.RunAt),
		WorkerID:        r.WorkerID.String,
		ErrorMessage:    r.ErrorMessage.String,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		StartedAt:       nullTime(r.StartedAt),
		CompletedAt:     nullTime(r.CompletedAt),
		LastHeartbeatAt: nullTime(r.LastHeartbeatAt),
	}

	if len(r.Result) > 0 {
		var result domain.JobResult
		if err := json.Unmarshal(r.Result, &result); err == nil {
			job.Result = &result
		}
	}

	payload, err := domain.DecodePayload(job.Kind, r.Payload)
	if err != nil {
		return job, err
	}
	job.Payload = payload
	return job, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// jsonParam renders v as a JSON text parameter, or NULL for a nil pointer.
func jsonParam[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// CreateJob inserts a new job in the enqueued state.
func (s *Storage) CreateJob(ctx context.Context, job *domain.SyncJob) error {
	query := `
		INSERT INTO sync_jobs (
			job_id, kind, payload, priority, status, attempts,
			schedule_id, run_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, 0,
			NULLIF($6, '')::uuid, $7, $8, $8
		)
	`

	payload, err := domain.EncodePayload(job.Payload)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query,
		job.JobID,
		job.Kind,
		string(payload),
		int16(job.Priority),
		job.Status,
		job.ScheduleID,
		job.RunAt,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE job_id = $1`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job, err := row.toDomain()
	if err != nil {
		s.logger.Warn("Stored job has an invalid payload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	return job, nil
}

// ListJobs returns up to PageSize+1 jobs, newest first, so the caller can
// tell whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter domain.JobFilter) ([]*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.SyncJob, 0, len(rows))
	for _, row := range rows {
		job, _ := row.toDomain()
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ClaimJob attempts to claim an enqueued job using optimistic locking.
// Returns domain.ErrJobAlreadyClaimed when the job is not enqueued.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.SyncJob, error) {
	query := `
		UPDATE sync_jobs
		SET status = $1,
		    worker_id = $2,
		    error_message = NULL,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING ` + jobColumns

	var row jobRow
	err := sqlx.GetContext(ctx, s.db, &row, query, domain.JobStatusRunning, workerID, jobID, domain.JobStatusEnqueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job, err := row.toDomain()

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("kind", string(job.Kind)),
	)

	return job, err
}

// PromoteDelayedJob moves a delayed job whose wait has elapsed back to
// enqueued. It reports false when the job was not delayed.
func (s *Storage) PromoteDelayedJob(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE sync_jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusEnqueued, jobID, domain.JobStatusDelayed)
	if err != nil {
		return false, fmt.Errorf("failed to promote delayed job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpdateJobStatus records a terminal or running status with its result and error.
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, result *domain.JobResult, errorMsg string) error {
	query := `
		UPDATE sync_jobs
		SET status = $1::text,
			result = COALESCE($2::jsonb, result),
			error_message = NULLIF($3, ''),
			completed_at = CASE
				WHEN $1::text IN ($4::text, $5::text) THEN NOW()
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE job_id = $6
	`

	resultJSON, err := jsonParam(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query, status, resultJSON, errorMsg, domain.JobStatusCompleted, domain.JobStatusFailed, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return nil
}

// RescheduleJob parks a running job as delayed until runAt. It counts as a
// healthy run: attempts goes up and the retry streak is cleared.
func (s *Storage) RescheduleJob(ctx context.Context, jobID string, runAt time.Time, result *domain.JobResult) error {
	query := `
		UPDATE sync_jobs
		SET status = $1,
		    run_at = $2,
		    attempts = attempts + 1,
		    retries = 0,
		    worker_id = NULL,
		    result = COALESCE($3::jsonb, result),
		    updated_at = NOW()
		WHERE job_id = $4
		  AND status = $5
	`

	resultJSON, err := jsonParam(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusDelayed, runAt, resultJSON, jobID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Info("Job rescheduled",
		slog.String("job_id", jobID),
		slog.Time("run_at", runAt),
	)
	return nil
}

// RetryJob parks a running job that hit a transient error as delayed until
// runAt, counting one more retry. Attempts is left alone.
func (s *Storage) RetryJob(ctx context.Context, jobID string, runAt time.Time, errorMsg string) error {
	query := `
		UPDATE sync_jobs
		SET status = $1,
		    run_at = $2,
		    retries = retries + 1,
		    worker_id = NULL,
		    error_message = NULLIF($3, ''),
		    updated_at = NOW()
		WHERE job_id = $4
		  AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusDelayed, runAt, errorMsg, jobID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	s.logger.Info("Job scheduled for retry",
		slog.String("job_id", jobID),
		slog.Time("run_at", runAt),
	)
	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a running job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE sync_jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// ListOverdueDelayedJobs returns delayed jobs whose run_at passed before the
// given instant. These lost their delay-queue message and need republishing.
func (s *Storage) ListOverdueDelayedJobs(ctx context.Context, before time.Time, limit int) ([]*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM sync_jobs
		WHERE status = $1 AND run_at < $2
		ORDER BY run_at
		LIMIT $3
	`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, domain.JobStatusDelayed, before, limit); err != nil {
		return nil, fmt.Errorf("failed to list overdue jobs: %w", err)
	}

	jobs := make([]*domain.SyncJob, 0, len(rows))
	for _, row := range rows {
		job, _ := row.toDomain()
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ListStaleRunningJobs returns running jobs whose last heartbeat is older
// than before. Their worker stopped without recording an outcome.
func (s *Storage) ListStaleRunningJobs(ctx context.Context, before time.Time, limit int) ([]*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM sync_jobs
		WHERE status = $1 AND COALESCE(last_heartbeat_at, started_at, updated_at) < $2
		ORDER BY last_heartbeat_at
		LIMIT $3
	`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, domain.JobStatusRunning, before, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	jobs := make([]*domain.SyncJob, 0, len(rows))
	for _, row := range rows {
		job, _ := row.toDomain()
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ReleaseStaleJob takes a stale running job away from its worker, moving it
// to status (enqueued to run again, or failed) and counting one retry. It
// reports false when the job heartbeated or finished in the meantime.
func (s *Storage) ReleaseStaleJob(ctx context.Context, jobID string, before time.Time, status domain.JobStatus, errorMsg string) (bool, error) {
	query := `
		UPDATE sync_jobs
		SET status = $1::text,
		    retries = retries + 1,
		    worker_id = NULL,
		    error_message = NULLIF($2, ''),
		    completed_at = CASE WHEN $1::text = $3::text THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE job_id = $4
		  AND status = $5
		  AND COALESCE(last_heartbeat_at, started_at, updated_at) < $6
	`

	res, err := s.db.ExecContext(ctx, query, status, errorMsg, domain.JobStatusFailed, jobID, domain.JobStatusRunning, before)
	if err != nil {
		return false, fmt.Errorf("failed to release stale job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// HasActiveJobForSchedule reports whether a job spawned by the schedule is
// still enqueued, running or delayed.
func (s *Storage) HasActiveJobForSchedule(ctx context.Context, scheduleID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sync_jobs
			WHERE schedule_id = $1 AND status IN ($2, $3, $4)
		)
	`

	var exists bool
	err := s.db.GetContext(ctx, &exists, query, scheduleID,
		domain.JobStatusEnqueued, domain.JobStatusRunning, domain.JobStatusDelayed)
	if err != nil {
		return false, fmt.Errorf("failed to check active jobs: %w", err)
	}
	return exists, nil
}
