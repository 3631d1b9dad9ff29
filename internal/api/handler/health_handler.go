package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports service health
type HealthHandler struct {
	logger *slog.Logger
	db     HealthChecker
	queue  QueueStats
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger: deps.Logger,
		db:     deps.DB,
		queue:  deps.Queue,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":   "healthy",
		"service":  "genesis-api-service",
		"database": "up",
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("Database health check failed", slog.String("error", err.Error()))
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "down"
		} else if pool, ok := h.db.(PoolStats); ok {
			body["database_pool"] = pool.Stats()
		}
	}

	if h.queue != nil {
		body["queue"] = h.queue.Snapshot()
	}

	c.JSON(status, body)
}
