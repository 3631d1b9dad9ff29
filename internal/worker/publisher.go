package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
)

// Publisher sends a message to the durable generation queue
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string, messageID string) error
}

// RabbitQueue enqueues payloads as persistent RabbitMQ messages
type RabbitQueue struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewRabbitQueue creates a RabbitQueue
func NewRabbitQueue(publisher Publisher, logger *slog.Logger) *RabbitQueue {
	return &RabbitQueue{
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue publishes payload, reference images included, keyed by job id
func (q *RabbitQueue) Enqueue(ctx context.Context, payload *domain.QueuePayload) error {
	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	if err := q.publisher.Publish(ctx, body, "application/json", payload.JobID); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	q.logger.Debug("Job published to RabbitMQ",
		slog.String("job_id", payload.JobID),
		slog.Int("body_size", len(body)),
	)

	return nil
}
