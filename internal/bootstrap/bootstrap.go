// Package bootstrap builds the shared clients each binary wires from config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/genesis-be/internal/artifact"
	"github.com/cuongbtq/genesis-be/internal/config"
	"github.com/cuongbtq/genesis-be/internal/provider"
	"github.com/cuongbtq/genesis-be/internal/storage"
	"github.com/cuongbtq/genesis-be/internal/worker"
	"github.com/cuongbtq/genesis-be/shared/logger"
	"github.com/cuongbtq/genesis-be/shared/postgresql"
	"github.com/cuongbtq/genesis-be/shared/rabbitmq"
	sharedredis "github.com/cuongbtq/genesis-be/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// InitPostgreSQL initializes the PostgreSQL database client
func InitPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// InitRabbitMQ initializes the RabbitMQ client
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// InitRedis initializes the Redis client, or returns nil when no address is configured
func InitRedis(cfg *config.RedisConfig, logger *slog.Logger) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	return sharedredis.NewClient(&sharedredis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
}

// InitStorage builds the ledger and job store over an open database
func InitStorage(dbClient *postgresql.Client, cfg *config.CreditsConfig, logger *slog.Logger) *storage.Storage {
	return storage.NewStorage(dbClient.GetDB(), cfg.ExpiryPolicy, logger)
}

// InitArtifacts builds the Supabase-backed artifact store
func InitArtifacts(cfg *config.StorageConfig, logger *slog.Logger) (*artifact.Store, error) {
	store, err := artifact.NewSupabaseStore(cfg.URL, cfg.ServiceKey, cfg.Bucket, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	return store, nil
}

// InitProcessor builds the job processor with its provider and artifact store
func InitProcessor(ctx context.Context, cfg *config.Config, store worker.JobStore, artifacts worker.ArtifactUploader, logger *slog.Logger) (*worker.Processor, error) {
	gemini, err := provider.NewGemini(ctx, cfg.Provider.APIKey, cfg.Provider.Models, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	return worker.NewProcessor(store, gemini, artifacts, logger), nil
}
