package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/genesis-be/internal/api/handler"
	"github.com/cuongbtq/genesis-be/internal/api/router"
	"github.com/cuongbtq/genesis-be/internal/bootstrap"
	"github.com/cuongbtq/genesis-be/internal/config"
	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/cuongbtq/genesis-be/internal/generation"
	"github.com/cuongbtq/genesis-be/internal/ratelimit"
	"github.com/cuongbtq/genesis-be/internal/scheduler"
	"github.com/cuongbtq/genesis-be/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("queue_backend", cfg.Worker.QueueBackend),
		slog.String("expiry_policy", string(cfg.Credits.ExpiryPolicy)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	store := bootstrap.InitStorage(dbClient, &cfg.Credits, appLogger.Logger)

	artifacts, err := bootstrap.InitArtifacts(&cfg.Storage, appLogger.Logger)
	if err != nil {
		return err
	}

	var (
		queue      generation.Queue
		queueStats handler.QueueStats
		background *worker.Worker
	)

	switch cfg.Worker.QueueBackend {
	case config.QueueBackendRabbitMQ:
		rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		appLogger.Info("RabbitMQ connection established")
		queue = worker.NewRabbitQueue(rabbitClient, appLogger.Logger)

	default:
		processor, err := bootstrap.InitProcessor(ctx, cfg, store, artifacts, appLogger.Logger)
		if err != nil {
			return err
		}

		memoryQueue := worker.NewMemoryQueue(processor, appLogger.Logger)
		queue = memoryQueue
		queueStats = memoryQueue

		background = worker.NewWorker(memoryQueue, cfg.Worker.ShutdownTimeout, appLogger.Logger)
		background.Start(ctx)
	}

	var limiter generation.RateLimiter
	redisClient, err := bootstrap.InitRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewLimiter(redisClient, cfg.Redis.Prefix, "submit", cfg.Redis.SubmitLimitPerMinute, time.Minute)
		appLogger.Info("Submission rate limit enabled",
			slog.Int("per_minute", cfg.Redis.SubmitLimitPerMinute),
		)
	}

	if cfg.Credits.ExpiryPolicy == domain.ExpiryPolicyZero {
		sweeper := scheduler.NewScheduler(store, appLogger.Logger)
		if err := sweeper.Start(cfg.Credits.ExpirySweepSchedule); err != nil {
			return err
		}
		defer func() { <-sweeper.Stop().Done() }()
	}

	service := generation.NewService(generation.Config{
		Cost:               cfg.Generation.Cost,
		MaxReferenceImages: cfg.Generation.MaxReferenceImages,
		SignedURLTTL:       cfg.Generation.SignedURLTTL,
	}, store, queue, artifacts, domain.NewCatalog(cfg.Credits.Tiers), limiter, appLogger.Logger)

	r := initRouter(cfg, appLogger.Logger, &handler.Dependencies{
		Logger:  appLogger.Logger,
		Service: service,
		DB:      dbClient,
		Queue:   queueStats,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var workerDone <-chan struct{}
	if background != nil {
		workerDone = background.Done()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down",
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	case <-workerDone:
		appLogger.Error("Worker stopped unexpectedly", slog.Any("error", background.Err()))
		return background.Err()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	if background != nil {
		if err := background.Stop(); err != nil {
			appLogger.Warn("Worker did not stop in time", slog.Any("error", err))
		}
	}

	appLogger.Info("API service shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, deps *handler.Dependencies) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps.Logger = logger
	return router.SetupRouter(deps, router.Options{
		Auth: router.AuthConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		},
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
}
