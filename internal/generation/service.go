package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/google/uuid"
)

// Pagination bounds for history
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Store is the ledger and job store the service reads and mutates
type Store interface {
	GetProfile(ctx context.Context, userID, email string) (*domain.Profile, error)
	ReserveAndCreateJob(ctx context.Context, params domain.JobParams, cost int) (*domain.Job, error)
	Recharge(ctx context.Context, userID string, tier domain.Tier) (*domain.Profile, error)
	GetJob(ctx context.Context, userID, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error)
	DeleteJob(ctx context.Context, userID, jobID string) (domain.DeleteResult, error)
	SetProcessing(ctx context.Context, jobID string) (bool, error)
	SetFailedAndRefund(ctx context.Context, jobID, errorMessage string, refundAmount int) error
}

// Queue hands a reserved job to the worker
type Queue interface {
	Enqueue(ctx context.Context, payload *domain.QueuePayload) error
}

// Artifacts signs and removes stored images
type Artifacts interface {
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
}

// RateLimiter admits or rejects one submission for key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds submission rules
type Config struct {
	Cost               int
	MaxReferenceImages int
	SignedURLTTL       time.Duration
}

// SubmitRequest is an unvalidated submission
type SubmitRequest struct {
	UserID          string
	Prompt          string
	ReferenceImages []string
	AspectRatio     string
	ImageSize       string
	Model           string
}

// JobView is a job with a freshly signed artifact URL when one exists
type JobView struct {
	domain.Job
	ImageURL *string
}

// History is one page of a user's jobs
type History struct {
	Items   []JobView
	Limit   int
	Offset  int
	HasMore bool
}

// RechargeResult is the balance after a recharge
type RechargeResult struct {
	Profile *domain.Profile
	Tier    domain.Tier
	Added   int
}

// Service implements submission, polling, history, deletion and recharge
type Service struct {
	cfg       Config
	store     Store
	queue     Queue
	artifacts Artifacts
	catalog   *domain.Catalog
	limiter   RateLimiter
	logger    *slog.Logger
}

// NewService creates a Service. limiter may be nil to disable rate limiting.
func NewService(cfg Config, store Store, queue Queue, artifacts Artifacts, catalog *domain.Catalog, limiter RateLimiter, logger *slog.Logger) *Service {
	if cfg.MaxReferenceImages <= 0 {
		cfg.MaxReferenceImages = 6
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	if catalog == nil {
		catalog = domain.NewCatalog(nil)
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		queue:     queue,
		artifacts: artifacts,
		catalog:   catalog,
		limiter:   limiter,
		logger:    logger,
	}
}

// Submit validates the request, reserves credits with the job row and enqueues it.
// It returns as soon as the job is queued.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error) {
	params, images, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, req.UserID)
		if err != nil {
			s.logger.Warn("Rate limiter unavailable, allowing submission",
				slog.String("user_id", req.UserID),
				slog.Any("error", err),
			)
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	job, err := s.store.ReserveAndCreateJob(ctx, params, s.cfg.Cost)
	if err != nil {
		return nil, err
	}

	payload := &domain.QueuePayload{
		JobID:           job.ID,
		UserID:          job.UserID,
		Prompt:          job.Prompt,
		ReferenceImages: images,
		AspectRatio:     job.AspectRatio,
		ImageSize:       job.ImageSize,
		Model:           job.Model,
		Cost:            job.Cost,
		EnqueuedAt:      time.Now(),
	}

	if err := s.queue.Enqueue(ctx, payload); err != nil {
		if cerr := s.compensate(context.WithoutCancel(ctx), job, err); cerr != nil {
			return nil, fmt.Errorf("failed to enqueue job: %w: %w", err, cerr)
		}
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("Generation job queued",
		slog.String("job_id", job.ID),
		slog.String("user_id", job.UserID),
		slog.String("model", string(job.Model)),
		slog.Int("reference_images", len(images)),
	)

	return job, nil
}

func (s *Service) validate(req SubmitRequest) (domain.JobParams, []domain.ReferenceImage, error) {
	prompt := strings.TrimSpace(req.Prompt)

	images, err := decodeReferenceImages(req.ReferenceImages, s.cfg.MaxReferenceImages)
	if err != nil {
		return domain.JobParams{}, nil, err
	}

	if prompt == "" && len(images) == 0 {
		return domain.JobParams{}, nil, fmt.Errorf("%w: provide prompt or at least one reference image", domain.ErrInvalidInput)
	}

	model := domain.DefaultModel
	if req.Model != "" {
		var ok bool
		if model, ok = domain.ParseModel(req.Model); !ok {
			return domain.JobParams{}, nil, fmt.Errorf("%w: invalid model, use pro or v2", domain.ErrInvalidInput)
		}
	}

	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = domain.DefaultAspectRatio
	}
	if !domain.ValidAspectRatio(aspectRatio) {
		return domain.JobParams{}, nil, fmt.Errorf("%w: unsupported aspect ratio %q", domain.ErrInvalidInput, aspectRatio)
	}

	imageSize := req.ImageSize
	if imageSize == "" {
		imageSize = domain.DefaultImageSize
	}
	if !domain.ValidImageSize(imageSize) {
		return domain.JobParams{}, nil, fmt.Errorf("%w: unsupported image size %q", domain.ErrInvalidInput, imageSize)
	}

	return domain.JobParams{
		UserID:      req.UserID,
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		ImageSize:   imageSize,
		Model:       model,
	}, images, nil
}

// compensate fails and refunds a reserved job that never reached the queue.
// A non-nil return means the credits stay reserved.
func (s *Service) compensate(ctx context.Context, job *domain.Job, cause error) error {
	log := s.logger.With(slog.String("job_id", job.ID), slog.String("user_id", job.UserID))
	log.Error("Failed to enqueue job, refunding",
		slog.Any("error", cause),
	)

	claimed, err := s.store.SetProcessing(ctx, job.ID)
	if err == nil && !claimed {
		err = domain.ErrJobAlreadyClaimed
	}
	if err != nil {
		log.Error("Failed to claim unqueued job for refund; credits stay reserved",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to claim job for refund: %w", err)
	}

	if err := s.store.SetFailedAndRefund(ctx, job.ID, "failed to enqueue job: "+cause.Error(), job.Cost); err != nil {
		log.Error("Failed to refund unqueued job; credits stay reserved",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to refund job: %w", err)
	}
	return nil
}

// GetJob returns the caller's job. Ids that are not UUIDs are never found.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*JobView, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}

	job, err := s.store.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	view := s.view(ctx, *job)
	return &view, nil
}

// History returns a page of the caller's jobs newest first.
// limit is clamped to [1, MaxHistoryLimit] and offset to >= 0.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) (*History, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.store.ListJobs(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, s.view(ctx, job))
	}

	return &History{
		Items:   items,
		Limit:   limit,
		Offset:  offset,
		HasMore: len(jobs) == limit,
	}, nil
}

// view signs the artifact URL; signing failures degrade to no URL
func (s *Service) view(ctx context.Context, job domain.Job) JobView {
	view := JobView{Job: job}
	if job.ResultImagePath == nil {
		return view
	}

	url, err := s.artifacts.SignedURL(ctx, *job.ResultImagePath, s.cfg.SignedURLTTL)
	if err != nil {
		s.logger.Warn("Failed to sign artifact url",
			slog.String("job_id", job.ID),
			slog.String("artifact_path", *job.ResultImagePath),
			slog.Any("error", err),
		)
		return view
	}

	view.ImageURL = &url
	return view
}

// DeleteJob removes the caller's job and then its artifact on a best-effort basis.
// It reports false when there was nothing to delete.
func (s *Service) DeleteJob(ctx context.Context, userID, jobID string) (bool, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return false, nil
	}

	result, err := s.store.DeleteJob(ctx, userID, jobID)
	if err != nil {
		return false, err
	}
	if !result.Deleted {
		return false, nil
	}

	if result.ArtifactPath != "" {
		if err := s.artifacts.Delete(ctx, result.ArtifactPath); err != nil {
			s.logger.Warn("Failed to delete artifact; job already deleted",
				slog.String("job_id", jobID),
				slog.String("artifact_path", result.ArtifactPath),
				slog.Any("error", err),
			)
		}
	}

	s.logger.Info("Generation job deleted",
		slog.String("job_id", jobID),
		slog.String("user_id", userID),
	)

	return true, nil
}

// Recharge adds the named tier's credits to the caller's balance
func (s *Service) Recharge(ctx context.Context, userID, tierKey string) (*RechargeResult, error) {
	tier, err := s.catalog.Lookup(tierKey)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.Recharge(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	return &RechargeResult{Profile: profile, Tier: tier, Added: tier.Credits}, nil
}

// Profile returns the caller's balance, creating the profile on first access
func (s *Service) Profile(ctx context.Context, userID, email string) (*domain.Profile, error) {
	return s.store.GetProfile(ctx, userID, email)
}

// Tiers lists the recharge catalog
func (s *Service) Tiers() []domain.Tier {
	return s.catalog.List()
}
