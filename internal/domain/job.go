package domain

import "time"

// SyncJob is one unit of work in the sync queue.
type SyncJob struct {
	JobID           string
	Kind            JobKind
	Payload         Payload
	Priority        uint8
	Status          JobStatus
	Attempts        int // delayed outcomes so far, such as export polls
	Retries         int // transient failures since the last healthy run
	ScheduleID      string
	RunAt           *time.Time
	WorkerID        string
	Result          *JobResult
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastHeartbeatAt *time.Time
}

// JobResult is recorded on a job when it completes. Batch jobs always carry
// both counters, so a partial failure is visible without failing the job.
type JobResult struct {
	SuccessCount int    `json:"successCount"`
	FailCount    int    `json:"failCount"`
	ExportID     string `json:"exportId,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Outcome is what an executor reports for a job that did not fail.
// A Delayed outcome puts the same job back on the queue after Delay.
type Outcome struct {
	Status JobStatus
	Result *JobResult
	Delay  time.Duration
}

// Completed builds a completed outcome.
func Completed(result *JobResult) Outcome {
	return Outcome{Status: JobStatusCompleted, Result: result}
}

// Delayed builds an outcome that reschedules the job.
func Delayed(delay time.Duration, message string) Outcome {
	return Outcome{Status: JobStatusDelayed, Delay: delay, Result: &JobResult{Message: message}}
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// EnqueueOptions controls how a new job enters the queue.
type EnqueueOptions struct {
	Priority   uint8
	Delay      time.Duration
	ScheduleID string
}

// JobFilter narrows a job listing. Cursor is exclusive.
type JobFilter struct {
	Kind     JobKind
	Status   JobStatus
	PageSize int
	Cursor   *JobCursor
}

// JobCursor marks a position in the (created_at, job_id) ordering.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// SyncSchedule is a recurring search definition fired on a cron cadence.
type SyncSchedule struct {
	ScheduleID string
	Name       string
	CronExpr   string
	Filter     SearchFilter
	Priority   uint8
	Active     bool
	LastJobID  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
