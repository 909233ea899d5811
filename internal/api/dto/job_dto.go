package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
)

type ListJobsRequest struct {
	Kind     string `form:"kind"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Success    bool     `json:"success"`
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type JobDTO struct {
	JobID        string            `json:"jobId"`
	Kind         string            `json:"kind"`
	Status       string            `json:"status"`
	Priority     uint8             `json:"priority"`
	Attempts     int               `json:"attempts"`
	Retries      int               `json:"retries"`
	ScheduleID   string            `json:"scheduleId,omitempty"`
	Payload      json.RawMessage   `json:"payload,omitempty"`
	Result       *domain.JobResult `json:"result,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	WorkerID     string            `json:"workerId,omitempty"`
	RunAt        string            `json:"runAt,omitempty"`
	CreatedAt    string            `json:"createdAt"`
	UpdatedAt    string            `json:"updatedAt"`
	StartedAt    string            `json:"startedAt,omitempty"`
	CompletedAt  string            `json:"completedAt,omitempty"`
}

type ScheduleDTO struct {
	ScheduleID   string              `json:"scheduleId"`
	Name         string              `json:"name"`
	CronSchedule string              `json:"cronSchedule"`
	SearchParams domain.SearchFilter `json:"searchParams"`
	Priority     uint8               `json:"priority"`
	Active       bool                `json:"active"`
	LastJobID    string              `json:"lastJobId,omitempty"`
	CreatedAt    string              `json:"createdAt"`
	UpdatedAt    string              `json:"updatedAt"`
}

// NewJobDTO renders a job for the API. A payload that cannot be encoded is
// left out rather than failing the listing.
func NewJobDTO(job *domain.SyncJob) JobDTO {
	out := JobDTO{
		JobID:        job.JobID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		Priority:     job.Priority,
		Attempts:     job.Attempts,
		Retries:      job.Retries,
		ScheduleID:   job.ScheduleID,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
		WorkerID:     job.WorkerID,
		RunAt:        formatTime(job.RunAt),
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
		StartedAt:    formatTime(job.StartedAt),
		CompletedAt:  formatTime(job.CompletedAt),
	}
	if job.Payload != nil {
		if payload, err := domain.EncodePayload(job.Payload); err == nil {
			out.Payload = payload
		}
	}
	return out
}

func NewScheduleDTO(s *domain.SyncSchedule) ScheduleDTO {
	return ScheduleDTO{
		ScheduleID:   s.ScheduleID,
		Name:         s.Name,
		CronSchedule: s.CronExpr,
		SearchParams: s.Filter,
		Priority:     s.Priority,
		Active:       s.Active,
		LastJobID:    s.LastJobID,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
