package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/api/dto"
	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/gin-gonic/gin"
)

// SyncService is the scheduling and read surface the handlers call into.
type SyncService interface {
	ScheduleSearchSync(ctx context.Context, filter domain.SearchFilter) (*domain.SyncJob, error)
	ScheduleSingleProfileSync(ctx context.Context, profileID string) (*domain.SyncJob, error)
	ScheduleExport(ctx context.Context, params domain.ExportParams) (*domain.SyncJob, error)
	ScheduleRecurringSync(ctx context.Context, name string, filter domain.SearchFilter, cronExpr string) (*domain.SyncSchedule, *domain.SyncJob, error)
	GetJob(ctx context.Context, jobID string) (*domain.SyncJob, error)
	ListJobs(ctx context.Context, filter domain.JobFilter) ([]*domain.SyncJob, *domain.JobCursor, error)
	ListSchedules(ctx context.Context) ([]*domain.SyncSchedule, error)
	GetInfluencer(ctx context.Context, influencerID string) (*domain.InfluencerProfile, error)
	Platforms(ctx context.Context) ([]domain.DictionaryEntry, error)
	Topics(ctx context.Context) ([]domain.DictionaryEntry, error)
	Locations(ctx context.Context) ([]domain.DictionaryEntry, error)
	HandleWebhookEvent(ctx context.Context, event domain.WebhookEvent) (domain.WebhookAction, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Service       SyncService
	WebhookSecret string
	HealthChecks  map[string]func(ctx context.Context) error
}

// SyncHandler handles sync scheduling and job inspection requests
type SyncHandler struct {
	logger  *slog.Logger
	service SyncService
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(deps *Dependencies) *SyncHandler {
	return &SyncHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// InfluencerHandler serves influencer profiles and provider reference data
type InfluencerHandler struct {
	logger  *slog.Logger
	service SyncService
}

// NewInfluencerHandler creates a new InfluencerHandler instance
func NewInfluencerHandler(deps *Dependencies) *InfluencerHandler {
	return &InfluencerHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// respondError maps err onto a status code and writes the error body.
func respondError(c *gin.Context, logger *slog.Logger, err error, message string) {
	status := http.StatusInternalServerError
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = "Invalid request"
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		logger.Error(message,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Warn(message,
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(status, dto.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

// badRequest writes a 400 for malformed input that never reached the service.
func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
