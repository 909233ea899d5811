package handler

import (
	"context"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/gin-gonic/gin"
)

// GetInfluencer handles GET /api/v1/influencers/:influencer_id
// Stale profiles are refreshed from the provider before they are returned.
func (h *InfluencerHandler) GetInfluencer(c *gin.Context) {
	influencer, err := h.service.GetInfluencer(c.Request.Context(), c.Param("influencer_id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to get influencer")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"influencer": influencer,
	})
}

// Platforms handles GET /api/v1/provider/platforms
func (h *InfluencerHandler) Platforms(c *gin.Context) {
	h.dictionary(c, "platforms", h.service.Platforms)
}

// Topics handles GET /api/v1/provider/topics
func (h *InfluencerHandler) Topics(c *gin.Context) {
	h.dictionary(c, "topics", h.service.Topics)
}

// Locations handles GET /api/v1/provider/locations
func (h *InfluencerHandler) Locations(c *gin.Context) {
	h.dictionary(c, "locations", h.service.Locations)
}

func (h *InfluencerHandler) dictionary(c *gin.Context, name string, fetch func(context.Context) ([]domain.DictionaryEntry, error)) {
	entries, err := fetch(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch "+name)
		return
	}
	if entries == nil {
		entries = []domain.DictionaryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		name:      entries,
	})
}
