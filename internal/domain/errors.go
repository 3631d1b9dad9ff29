package domain

import "errors"

var (
	// ErrInvalidInput is returned when submission parameters are rejected before any mutation
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientCredits is returned when a debit would take a balance below zero
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotFound is returned for jobs the caller does not own or that do not exist
	ErrNotFound = errors.New("not found")

	// ErrProviderFailure marks an opaque generation failure
	ErrProviderFailure = errors.New("provider failure")

	// ErrPersistence wraps any storage fault
	ErrPersistence = errors.New("persistence error")

	// ErrStaleArtifact is returned when a signed URL is requested for a missing object
	ErrStaleArtifact = errors.New("artifact no longer exists")

	// ErrJobAlreadyClaimed is returned when a job already left the queued state
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")

	// ErrInvalidTransition is returned when a status write does not match the current state
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrUnknownTier is returned when a recharge names a tier outside the catalog
	ErrUnknownTier = errors.New("unknown credit tier")

	// ErrRateLimited is returned when a user exceeds the submission rate
	ErrRateLimited = errors.New("too many submissions")
)

// ProviderError carries the provider's message for a failed generation
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrProviderFailure
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// NewProviderError wraps err as a provider failure
func NewProviderError(err error) error {
	return &ProviderError{Err: err}
}
