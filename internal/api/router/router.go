package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/creator-sync/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 3 * time.Second

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps.HealthChecks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	syncHandler := handler.NewSyncHandler(deps)
	influencerHandler := handler.NewInfluencerHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		sync := v1.Group("/sync")
		{
			sync.POST("/search", syncHandler.ScheduleSearchSync)
			sync.POST("/profile/:profile_id", syncHandler.ScheduleSingleProfileSync)
			sync.POST("/recurring", syncHandler.ScheduleRecurringSync)
			sync.POST("/export", syncHandler.ScheduleExport)

			sync.GET("/jobs", syncHandler.ListJobs)
			sync.GET("/jobs/:job_id", syncHandler.GetJob)
			sync.GET("/schedules", syncHandler.ListSchedules)
		}

		v1.GET("/influencers/:influencer_id", influencerHandler.GetInfluencer)

		provider := v1.Group("/provider")
		{
			provider.GET("/platforms", influencerHandler.Platforms)
			provider.GET("/topics", influencerHandler.Topics)
			provider.GET("/locations", influencerHandler.Locations)
		}
	}

	webhooks := r.Group("/api/webhooks")
	webhooks.Use(WebhookSignatureMiddleware(deps.WebhookSecret, deps.Logger))
	{
		webhooks.POST("/insightiq", webhookHandler.HandleInsightIQ)
	}

	return r
}

// healthHandler reports 503 when any dependency check fails.
func healthHandler(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":  state,
			"service": "creator-sync-api",
			"checks":  results,
		})
	}
}
