package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/genesis-be/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// Me handles GET /api/v1/me
// The profile is created with zero credits on first access
func (h *JobHandler) Me(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), userID(c), c.GetString(ContextEmail))
	if err != nil {
		h.respondError(c, err, "load profile")
		return
	}

	c.JSON(http.StatusOK, dto.NewProfileResponse(profile))
}

// ListTiers handles GET /api/v1/credits/tiers
func (h *JobHandler) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, dto.TiersResponse{Tiers: h.service.Tiers()})
}

// Recharge handles POST /api/v1/credits/recharge
func (h *JobHandler) Recharge(c *gin.Context) {
	var req dto.RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "tier is required",
		})
		return
	}

	result, err := h.service.Recharge(c.Request.Context(), userID(c), req.Tier)
	if err != nil {
		h.respondError(c, err, "recharge credits")
		return
	}

	h.logger.Info("Credits recharged",
		slog.String("user_id", userID(c)),
		slog.String("tier", result.Tier.Key),
		slog.Int("added", result.Added),
		slog.Int("credits", result.Profile.Credits),
	)

	c.JSON(http.StatusOK, dto.RechargeResponse{
		Credits:          result.Profile.Credits,
		Added:            result.Added,
		Tier:             result.Tier.Key,
		CreditsExpiresAt: result.Profile.CreditsExpiresAt,
	})
}
