package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/cuongbtq/genesis-be/internal/generation"
	"github.com/cuongbtq/genesis-be/internal/worker"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// GenerationService is the application layer behind the handlers
type GenerationService interface {
	Submit(ctx context.Context, req generation.SubmitRequest) (*domain.Job, error)
	GetJob(ctx context.Context, userID, jobID string) (*generation.JobView, error)
	History(ctx context.Context, userID string, limit, offset int) (*generation.History, error)
	DeleteJob(ctx context.Context, userID, jobID string) (bool, error)
	Recharge(ctx context.Context, userID, tierKey string) (*generation.RechargeResult, error)
	Profile(ctx context.Context, userID, email string) (*domain.Profile, error)
	Tiers() []domain.Tier
}

// HealthChecker reports database reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PoolStats is implemented by database clients that expose connection pool usage
type PoolStats interface {
	Stats() string
}

// QueueStats reports in-process queue depth
type QueueStats interface {
	Snapshot() worker.Snapshot
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger  *slog.Logger
	Service GenerationService
	// DB is also reported under database_pool when it implements PoolStats
	DB HealthChecker
	// Queue is nil when jobs are dispatched to a broker
	Queue QueueStats
}

// JobHandler handles generation and credit requests
type JobHandler struct {
	logger  *slog.Logger
	service GenerationService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		service: deps.Service,
	}
}

// userID returns the authenticated caller
func userID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// respondError maps domain errors onto status codes
func (h *JobHandler) respondError(c *gin.Context, err error, action string) {
	status := http.StatusInternalServerError
	message := "Failed to " + action

	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownTier):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrInsufficientCredits):
		status = http.StatusPaymentRequired
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to "+action,
			slog.String("user_id", userID(c)),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(status, gin.H{"error": message})
}
