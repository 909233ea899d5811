package dto

import "github.com/cuongbtq/creator-sync/internal/domain"

// RecurringSyncRequest is the body of POST /api/v1/sync/recurring.
type RecurringSyncRequest struct {
	Name         string              `json:"name"`
	SearchParams domain.SearchFilter `json:"searchParams"`
	CronSchedule string              `json:"cronSchedule"`
}

// ScheduleResponse is returned by the scheduling endpoints.
type ScheduleResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	JobID      string `json:"jobId,omitempty"`
	ScheduleID string `json:"scheduleId,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
