package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/api/dto"
	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetJob handles GET /api/v1/sync/jobs/:job_id
func (h *SyncHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Warn("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		badRequest(c, "job_id must be a valid UUID", err)
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job":     dto.NewJobDTO(job),
	})
}

// ListJobs handles GET /api/v1/sync/jobs
// Lists jobs newest first with optional kind and status filters
func (h *SyncHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		badRequest(c, "Invalid query parameters", err)
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	kind := domain.JobKind(req.Kind)
	if kind != "" && !kind.Valid() {
		respondError(c, h.logger, domain.NewValidationError("kind", "unknown job kind"), "Invalid query parameters")
		return
	}
	status := domain.JobStatus(req.Status)
	switch status {
	case "", domain.JobStatusEnqueued, domain.JobStatusRunning, domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusDelayed:
	default:
		respondError(c, h.logger, domain.NewValidationError("status", "unknown job status"), "Invalid query parameters")
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		badRequest(c, "Invalid cursor", err)
		return
	}

	jobs, next, err := h.service.ListJobs(c.Request.Context(), domain.JobFilter{
		Kind:     kind,
		Status:   status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to list jobs")
		return
	}

	resp := dto.ListJobsResponse{
		Success: true,
		Jobs:    make([]dto.JobDTO, len(jobs)),
	}
	for i, job := range jobs {
		resp.Jobs[i] = dto.NewJobDTO(job)
	}
	if next != nil {
		resp.NextCursor = EncodeJobCursor(next)
	}

	c.JSON(http.StatusOK, resp)
}

// ListSchedules handles GET /api/v1/sync/schedules
func (h *SyncHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.service.ListSchedules(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to list schedules")
		return
	}

	out := make([]dto.ScheduleDTO, len(schedules))
	for i, s := range schedules {
		out[i] = dto.NewScheduleDTO(s)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"schedules": out,
	})
}
