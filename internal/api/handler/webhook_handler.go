package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/gin-gonic/gin"
)

// WebhookHandler receives provider export callbacks
type WebhookHandler struct {
	logger  *slog.Logger
	service SyncService
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	return &WebhookHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// HandleInsightIQ handles POST /api/webhooks/insightiq
// Every event that was actioned or deliberately ignored is acknowledged
// with 200 so the provider stops retrying it.
func (h *WebhookHandler) HandleInsightIQ(c *gin.Context) {
	var event domain.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warn("Invalid webhook body", slog.String("error", err.Error()))
		badRequest(c, "Invalid webhook body", err)
		return
	}

	action, err := h.service.HandleWebhookEvent(c.Request.Context(), event)
	if err != nil {
		respondError(c, h.logger, err, "Failed to handle webhook event")
		return
	}

	h.logger.Info("Webhook event handled",
		slog.String("event_type", event.EventType),
		slog.String("export_id", event.Payload.ExportID),
		slog.String("action", string(action)),
	)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  action,
	})
}
