package router

import (
	"github.com/cuongbtq/genesis-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options configures cross-cutting HTTP behavior
type Options struct {
	Auth           AuthConfig
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(opts.Auth, deps.Logger))
	v1.Use(BodyLimitMiddleware(opts.MaxBodyBytes))
	{
		v1.GET("/me", jobHandler.Me)

		credits := v1.Group("/credits")
		{
			credits.GET("/tiers", jobHandler.ListTiers)
			credits.POST("/recharge", jobHandler.Recharge)
		}

		generations := v1.Group("/generations")
		{
			// POST /api/v1/generations - Reserve credits and queue a job
			generations.POST("", jobHandler.SubmitGeneration)

			// GET /api/v1/generations/jobs/:job_id - Poll a job
			generations.GET("/jobs/:job_id", jobHandler.GetJob)

			// GET /api/v1/generations/history - Newest first, offset paginated
			generations.GET("/history", jobHandler.ListHistory)

			// DELETE /api/v1/generations/:job_id - Delete a job and its image
			generations.DELETE("/:job_id", jobHandler.DeleteJob)
		}
	}

	return r
}
