package domain

import "time"

// Job is the durable record of one generation request
type Job struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	Prompt          string     `db:"prompt"`
	AspectRatio     string     `db:"aspect_ratio"`
	ImageSize       string     `db:"image_size"`
	Model           Model      `db:"model"`
	Cost            int        `db:"cost"`
	Status          JobStatus  `db:"status"`
	Error           *string    `db:"error"`
	ResultImagePath *string    `db:"result_image_path"`
	CreatedAt       time.Time  `db:"created_at"`
	StartedAt       *time.Time `db:"started_at"`
	CompletedAt     *time.Time `db:"completed_at"`
}

// JobParams are the validated submission fields persisted with the job
type JobParams struct {
	UserID      string
	Prompt      string
	AspectRatio string
	ImageSize   string
	Model       Model
}

// DeleteResult reports whether a row was removed and what artifact it pointed to
type DeleteResult struct {
	Deleted      bool
	ArtifactPath string
}

// ReferenceImage is an ephemeral input image; it is never persisted
type ReferenceImage struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// QueuePayload is what the worker needs to process a job
type QueuePayload struct {
	JobID           string           `json:"job_id"`
	UserID          string           `json:"user_id"`
	Prompt          string           `json:"prompt"`
	ReferenceImages []ReferenceImage `json:"reference_images,omitempty"`
	AspectRatio     string           `json:"aspect_ratio"`
	ImageSize       string           `json:"image_size"`
	Model           Model            `json:"model"`
	Cost            int              `json:"cost"`
	EnqueuedAt      time.Time        `json:"enqueued_at"`
}

// GenerationRequest is the provider-facing view of a payload
type GenerationRequest struct {
	Prompt          string
	ReferenceImages []ReferenceImage
	AspectRatio     string
	ImageSize       string
	Model           Model
}

// Request builds the provider request for the payload
func (p *QueuePayload) Request() GenerationRequest {
	return GenerationRequest{
		Prompt:          p.Prompt,
		ReferenceImages: p.ReferenceImages,
		AspectRatio:     p.AspectRatio,
		ImageSize:       p.ImageSize,
		Model:           p.Model,
	}
}

// GeneratedImage is a successful provider result
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}
