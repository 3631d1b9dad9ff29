package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned when the broker closes the delivery channel
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// DeliverySource starts a manual-ack consumer
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Consumer handles deliveries one at a time, acking after the handler returns
type Consumer struct {
	source      DeliverySource
	handler     Handler
	consumerTag string
	logger      *slog.Logger
}

// NewConsumer creates a Consumer
func NewConsumer(source DeliverySource, handler Handler, consumerTag string, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:      source,
		handler:     handler,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

// Run consumes until ctx is canceled or the delivery channel closes.
// The delivery in flight when ctx is canceled is finished and acked first.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.consumerTag)
	if err != nil {
		return err
	}

	c.logger.Info("Message consumer started",
		slog.String("consumer_tag", c.consumerTag),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Message consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var payload domain.QueuePayload
	if err := json.Unmarshal(delivery.Body, &payload); err != nil {
		c.logger.Error("Failed to parse message JSON",
			slog.Any("error", err),
			slog.Int("body_size", len(delivery.Body)),
		)
		c.nack(delivery, "")
		return
	}

	if _, err := uuid.Parse(payload.JobID); err != nil {
		c.logger.Error("Invalid job_id format - not a UUID",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err),
		)
		c.nack(delivery, payload.JobID)
		return
	}

	outcome := c.handler.Process(context.WithoutCancel(ctx), &payload)

	// A failed claim is not retried; the job stays queued with credits reserved.
	if outcome == OutcomeClaimError {
		c.nack(delivery, payload.JobID)
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("Failed to ACK message",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err),
		)
		return
	}

	c.logger.Debug("Message ACKed",
		slog.String("job_id", payload.JobID),
		slog.String("outcome", string(outcome)),
	)
}

// nack rejects without requeue so the broker can dead-letter the message
func (c *Consumer) nack(delivery amqp.Delivery, jobID string) {
	if err := delivery.Nack(false, false); err != nil {
		c.logger.Error("Failed to NACK message",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}
