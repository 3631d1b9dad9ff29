package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/genesis-be/internal/bootstrap"
	"github.com/cuongbtq/genesis-be/internal/config"
	"github.com/cuongbtq/genesis-be/internal/worker"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := bootstrap.InitPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	rabbitClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	store := bootstrap.InitStorage(dbClient, &cfg.Credits, appLogger.Logger)

	artifacts, err := bootstrap.InitArtifacts(&cfg.Storage, appLogger.Logger)
	if err != nil {
		return err
	}

	processor, err := bootstrap.InitProcessor(ctx, cfg, store, artifacts, appLogger.Logger)
	if err != nil {
		return err
	}

	consumerTag := cfg.RabbitMQ.Consumer.Tag
	if consumerTag == "" {
		hostname, _ := os.Hostname()
		consumerTag = "genesis-worker-" + hostname
	}

	consumer := worker.NewConsumer(rabbitClient, processor, consumerTag, appLogger.Logger)
	workerInstance := worker.NewWorker(consumer, cfg.Worker.ShutdownTimeout, appLogger.Logger)
	workerInstance.Start(ctx)

	appLogger.Info("Worker service started successfully",
		slog.String("consumer_tag", consumerTag),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case <-workerInstance.Done():
		appLogger.Error("Worker error",
			slog.Any("error", workerInstance.Err()),
		)
		return workerInstance.Err()
	}

	if err := workerInstance.Stop(); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Any("error", err),
		)
	} else {
		appLogger.Info("Worker stopped gracefully")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}
