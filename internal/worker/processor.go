package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
)

// JobStore is the job state the processor drives
type JobStore interface {
	SetProcessing(ctx context.Context, jobID string) (bool, error)
	SetSucceeded(ctx context.Context, jobID, artifactPath string) error
	SetFailedAndRefund(ctx context.Context, jobID, errorMessage string, refundAmount int) error
}

// Generator produces an image for a request
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error)
}

// ArtifactUploader stores a generated image and returns its path
type ArtifactUploader interface {
	Upload(ctx context.Context, userID, jobID string, data []byte, mimeType string) (string, error)
}

// Handler processes one dequeued payload
type Handler interface {
	Process(ctx context.Context, payload *domain.QueuePayload) Outcome
}

// Outcome is how processing a payload ended
type Outcome string

const (
	// OutcomeSucceeded means the artifact is stored and the job is succeeded
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the job is failed and its cost refunded
	OutcomeFailed Outcome = "failed"
	// OutcomeClaimLost means the job had already left the queued state
	OutcomeClaimLost Outcome = "claim_lost"
	// OutcomeClaimError means the claim write itself failed; the job stays queued
	OutcomeClaimError Outcome = "claim_error"
	// OutcomeInconsistent means a terminal write failed and the job is stuck in processing
	OutcomeInconsistent Outcome = "inconsistent"
)

// Processor runs the generation pipeline for one job at a time
type Processor struct {
	store     JobStore
	generator Generator
	uploader  ArtifactUploader
	logger    *slog.Logger
}

// NewProcessor creates a Processor. The provider call is not bounded by a timeout.
func NewProcessor(store JobStore, generator Generator, uploader ArtifactUploader, logger *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		generator: generator,
		uploader:  uploader,
		logger:    logger,
	}
}

// Process claims the job, generates, uploads and records the terminal state.
// Any failure after the claim refunds the job's cost exactly once.
func (p *Processor) Process(ctx context.Context, payload *domain.QueuePayload) Outcome {
	log := p.logger.With(
		slog.String("job_id", payload.JobID),
		slog.String("user_id", payload.UserID),
	)

	// Step 1: Claim job (queued → processing)
	claimed, err := p.store.SetProcessing(ctx, payload.JobID)
	if err != nil {
		log.Error("Failed to claim job",
			slog.Any("error", err),
		)
		return OutcomeClaimError
	}
	if !claimed {
		log.Warn("Job already claimed, skipping")
		return OutcomeClaimLost
	}

	start := time.Now()
	log.Info("Processing job",
		slog.String("model", string(payload.Model)),
		slog.Duration("queued_for", start.Sub(payload.EnqueuedAt)),
	)

	// Step 2: Generate
	image, err := p.generator.Generate(ctx, payload.Request())
	if err != nil {
		return p.fail(ctx, log, payload, err)
	}

	// Step 3: Upload and mark succeeded
	path, err := p.uploader.Upload(ctx, payload.UserID, payload.JobID, image.Data, image.MIMEType)
	if err != nil {
		return p.fail(ctx, log, payload, err)
	}

	if err := p.store.SetSucceeded(ctx, payload.JobID, path); err != nil {
		// The artifact exists and the credits are spent; the job stays processing.
		log.Error("Failed to mark job succeeded after upload",
			slog.String("artifact_path", path),
			slog.Any("error", err),
		)
		return OutcomeInconsistent
	}

	log.Info("Job completed successfully",
		slog.String("artifact_path", path),
		slog.Duration("duration", time.Since(start)),
	)

	return OutcomeSucceeded
}

// fail records the error and refunds the job's cost in one store call
func (p *Processor) fail(ctx context.Context, log *slog.Logger, payload *domain.QueuePayload, cause error) Outcome {
	log.Warn("Job execution failed",
		slog.Any("error", cause),
	)

	if err := p.store.SetFailedAndRefund(ctx, payload.JobID, cause.Error(), payload.Cost); err != nil {
		log.Error("Failed to mark job failed and refund credits",
			slog.Int("refund", payload.Cost),
			slog.String("job_error", cause.Error()),
			slog.Any("error", err),
		)
		return OutcomeInconsistent
	}

	return OutcomeFailed
}
