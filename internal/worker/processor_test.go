package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/cuongbtq/genesis-be/internal/storage/storagetest"
	"github.com/cuongbtq/genesis-be/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	image *domain.GeneratedImage
	err   error
	delay time.Duration
	// during runs inside the provider call
	during func()
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, _ domain.GenerationRequest) (*domain.GeneratedImage, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, domain.NewProviderError(ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.image, nil
}

type fakeUploader struct {
	err     error
	uploads map[string][]byte
}

func (f *fakeUploader) Upload(_ context.Context, userID, jobID string, data []byte, mimeType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	path := fmt.Sprintf("%s/%s.png", userID, jobID)
	f.uploads[path] = data
	return path, nil
}

func pngImage() *domain.GeneratedImage {
	return &domain.GeneratedImage{Data: []byte("png-bytes"), MIMEType: "image/png"}
}

// reserve creates a queued job for a user with exactly cost credits
func reserve(t *testing.T, store *storagetest.Store, userID string, cost int) *domain.QueuePayload {
	t.Helper()
	store.SetBalance(userID, cost, nil)
	job, err := store.ReserveAndCreateJob(context.Background(), domain.JobParams{
		UserID: userID, Prompt: "a red fox", AspectRatio: "1:1", ImageSize: "1K", Model: domain.ModelV2,
	}, cost)
	require.NoError(t, err)
	return &domain.QueuePayload{
		JobID: job.ID, UserID: userID, Prompt: job.Prompt, AspectRatio: job.AspectRatio,
		ImageSize: job.ImageSize, Model: job.Model, Cost: cost,
	}
}

func TestProcessor_Success(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	uploader := &fakeUploader{}
	p := NewProcessor(store, &fakeGenerator{image: pngImage()}, uploader, logger.NewDiscard())
	payload := reserve(t, store, "u1", 50)

	outcome := p.Process(context.Background(), payload)
	assert.Equal(t, OutcomeSucceeded, outcome)

	job, ok := store.Job(payload.JobID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	require.NotNil(t, job.ResultImagePath)
	assert.Equal(t, "u1/"+payload.JobID+".png", *job.ResultImagePath)
	assert.Nil(t, job.Error)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 0, store.Balance("u1"))
	assert.Equal(t, []byte("png-bytes"), uploader.uploads[*job.ResultImagePath])
}

func TestProcessor_SlowProviderSucceeds(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	generator := &fakeGenerator{image: pngImage(), delay: 200 * time.Millisecond}
	p := NewProcessor(store, generator, &fakeUploader{}, logger.NewDiscard())
	payload := reserve(t, store, "u1", 50)

	assert.Equal(t, OutcomeSucceeded, p.Process(context.Background(), payload))

	job, _ := store.Job(payload.JobID)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, 0, store.Balance("u1"))
}

func TestProcessor_FailuresRefund(t *testing.T) {
	tests := []struct {
		name      string
		generator *fakeGenerator
		uploader  *fakeUploader
		wantError string
	}{
		{
			name:      "provider failure",
			generator: &fakeGenerator{err: domain.NewProviderError(errors.New("timeout"))},
			uploader:  &fakeUploader{},
			wantError: "generation failed: timeout",
		},
		{
			name:      "upload failure",
			generator: &fakeGenerator{image: pngImage()},
			uploader:  &fakeUploader{err: errors.New("bucket unavailable")},
			wantError: "bucket unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storagetest.New(domain.ExpiryPolicyNone)
			p := NewProcessor(store, tt.generator, tt.uploader, logger.NewDiscard())
			payload := reserve(t, store, "u1", 50)
			require.Equal(t, 0, store.Balance("u1"))

			outcome := p.Process(context.Background(), payload)
			assert.Equal(t, OutcomeFailed, outcome)

			job, _ := store.Job(payload.JobID)
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			require.NotNil(t, job.Error)
			assert.Contains(t, *job.Error, tt.wantError)
			assert.Nil(t, job.ResultImagePath)
			assert.Equal(t, 50, store.Balance("u1"))
		})
	}
}

func TestProcessor_ClaimLost(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	generator := &fakeGenerator{image: pngImage()}
	p := NewProcessor(store, generator, &fakeUploader{}, logger.NewDiscard())
	payload := reserve(t, store, "u1", 50)

	_, err := store.SetProcessing(context.Background(), payload.JobID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeClaimLost, p.Process(context.Background(), payload))
	assert.Zero(t, generator.calls)
}

func TestProcessor_DeletedBeforeClaimKeepsCost(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	generator := &fakeGenerator{image: pngImage()}
	p := NewProcessor(store, generator, &fakeUploader{}, logger.NewDiscard())
	payload := reserve(t, store, "u1", 50)

	result, err := store.DeleteJob(context.Background(), "u1", payload.JobID)
	require.NoError(t, err)
	require.True(t, result.Deleted)

	assert.Equal(t, OutcomeClaimLost, p.Process(context.Background(), payload))
	assert.Zero(t, generator.calls)
	assert.Equal(t, 0, store.Balance("u1"))
}

func TestProcessor_DeletedWhileProcessingKeepsCost(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	uploader := &fakeUploader{}
	payload := reserve(t, store, "u1", 50)
	generator := &fakeGenerator{image: pngImage(), during: func() {
		_, err := store.DeleteJob(context.Background(), "u1", payload.JobID)
		require.NoError(t, err)
	}}
	p := NewProcessor(store, generator, uploader, logger.NewDiscard())

	assert.Equal(t, OutcomeInconsistent, p.Process(context.Background(), payload))

	_, ok := store.Job(payload.JobID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Balance("u1"))
	assert.Contains(t, uploader.uploads, "u1/"+payload.JobID+".png")
}

func TestProcessor_ClaimError(t *testing.T) {
	store := storagetest.New(domain.ExpiryPolicyNone)
	generator := &fakeGenerator{image: pngImage()}
	p := NewProcessor(store, generator, &fakeUploader{}, logger.NewDiscard())
	payload := reserve(t, store, "u1", 50)
	store.FailOn("SetProcessing", domain.ErrPersistence)

	assert.Equal(t, OutcomeClaimError, p.Process(context.Background(), payload))
	assert.Zero(t, generator.calls)

	job, _ := store.Job(payload.JobID)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, 0, store.Balance("u1"))
}

func TestProcessor_TerminalWriteFailures(t *testing.T) {
	t.Run("succeeded write fails after upload", func(t *testing.T) {
		store := storagetest.New(domain.ExpiryPolicyNone)
		p := NewProcessor(store, &fakeGenerator{image: pngImage()}, &fakeUploader{}, logger.NewDiscard())
		payload := reserve(t, store, "u1", 50)
		store.FailOn("SetSucceeded", domain.ErrPersistence)

		assert.Equal(t, OutcomeInconsistent, p.Process(context.Background(), payload))

		job, _ := store.Job(payload.JobID)
		assert.Equal(t, domain.JobStatusProcessing, job.Status)
		assert.Equal(t, 0, store.Balance("u1"))
	})

	t.Run("refund write fails", func(t *testing.T) {
		store := storagetest.New(domain.ExpiryPolicyNone)
		p := NewProcessor(store, &fakeGenerator{err: errors.New("boom")}, &fakeUploader{}, logger.NewDiscard())
		payload := reserve(t, store, "u1", 50)
		store.FailOn("SetFailedAndRefund", domain.ErrPersistence)

		assert.Equal(t, OutcomeInconsistent, p.Process(context.Background(), payload))

		job, _ := store.Job(payload.JobID)
		assert.Equal(t, domain.JobStatusProcessing, job.Status)
		assert.Equal(t, 0, store.Balance("u1"))
	})
}
