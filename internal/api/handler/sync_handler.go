package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/api/dto"
	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/gin-gonic/gin"
)

// ScheduleSearchSync handles POST /api/v1/sync/search
func (h *SyncHandler) ScheduleSearchSync(c *gin.Context) {
	var filter domain.SearchFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body", err)
		return
	}

	job, err := h.service.ScheduleSearchSync(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to schedule search sync")
		return
	}

	h.logger.Info("Search sync scheduled",
		slog.String("job_id", job.JobID),
		slog.String("work_platform_id", filter.WorkPlatformID),
	)

	c.JSON(http.StatusAccepted, dto.ScheduleResponse{
		Success: true,
		Message: "Search sync scheduled",
		JobID:   job.JobID,
	})
}

// ScheduleSingleProfileSync handles POST /api/v1/sync/profile/:profile_id
func (h *SyncHandler) ScheduleSingleProfileSync(c *gin.Context) {
	profileID := c.Param("profile_id")

	job, err := h.service.ScheduleSingleProfileSync(c.Request.Context(), profileID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to schedule profile sync")
		return
	}

	h.logger.Info("Profile sync scheduled",
		slog.String("job_id", job.JobID),
		slog.String("influencer_id", profileID),
	)

	c.JSON(http.StatusAccepted, dto.ScheduleResponse{
		Success: true,
		Message: "Profile sync scheduled",
		JobID:   job.JobID,
	})
}

// ScheduleRecurringSync handles POST /api/v1/sync/recurring
// Registers the schedule and starts its first run right away. When the
// schedule already exists with a run in flight, that run is reported.
func (h *SyncHandler) ScheduleRecurringSync(c *gin.Context) {
	var req dto.RecurringSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body", err)
		return
	}

	schedule, job, err := h.service.ScheduleRecurringSync(c.Request.Context(), req.Name, req.SearchParams, req.CronSchedule)
	if err != nil {
		respondError(c, h.logger, err, "Failed to schedule recurring sync")
		return
	}

	resp := dto.ScheduleResponse{
		Success:    true,
		Message:    "Recurring sync scheduled",
		ScheduleID: schedule.ScheduleID,
		JobID:      schedule.LastJobID,
	}
	if job != nil {
		resp.JobID = job.JobID
	} else {
		resp.Message = "Recurring sync already running"
	}

	h.logger.Info("Recurring sync scheduled",
		slog.String("schedule_id", schedule.ScheduleID),
		slog.String("cron", schedule.CronExpr),
		slog.String("job_id", resp.JobID),
	)

	c.JSON(http.StatusAccepted, resp)
}

// ScheduleExport handles POST /api/v1/sync/export
func (h *SyncHandler) ScheduleExport(c *gin.Context) {
	var params domain.ExportParams
	if err := c.ShouldBindJSON(&params); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "Invalid request body", err)
		return
	}

	job, err := h.service.ScheduleExport(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.logger, err, "Failed to schedule export")
		return
	}

	h.logger.Info("Profile export scheduled", slog.String("job_id", job.JobID))

	c.JSON(http.StatusAccepted, dto.ScheduleResponse{
		Success: true,
		Message: "Profile export scheduled",
		JobID:   job.JobID,
	})
}
