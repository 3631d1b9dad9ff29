package dto

import (
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/cuongbtq/genesis-be/internal/generation"
)

type SubmitGenerationRequest struct {
	Prompt          string   `json:"prompt"`
	ReferenceImages []string `json:"reference_images"`
	AspectRatio     string   `json:"aspect_ratio"`
	ImageSize       string   `json:"image_size"`
	Model           string   `json:"model"`
}

type SubmitGenerationResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ListHistoryRequest struct {
	Limit  *int `form:"limit"`
	Offset int  `form:"offset"`
}

type HistoryResponse struct {
	Items   []JobDTO `json:"items"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	HasMore bool     `json:"has_more"`
}

type JobResponse struct {
	Job JobDTO `json:"job"`
}

type DeleteJobResponse struct {
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

type JobDTO struct {
	JobID           string     `json:"job_id"`
	UserID          string     `json:"user_id"`
	Prompt          string     `json:"prompt"`
	AspectRatio     string     `json:"aspect_ratio"`
	ImageSize       string     `json:"image_size"`
	Model           string     `json:"model"`
	Cost            int        `json:"cost"`
	Status          string     `json:"status"`
	Error           *string    `json:"error"`
	ResultImagePath *string    `json:"result_image_path"`
	ImageURL        *string    `json:"image_url"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// NewJobDTO renders a job view
func NewJobDTO(view generation.JobView) JobDTO {
	return JobDTO{
		JobID:           view.ID,
		UserID:          view.UserID,
		Prompt:          view.Prompt,
		AspectRatio:     view.AspectRatio,
		ImageSize:       view.ImageSize,
		Model:           string(view.Model),
		Cost:            view.Cost,
		Status:          string(view.Status),
		Error:           view.Error,
		ResultImagePath: view.ResultImagePath,
		ImageURL:        view.ImageURL,
		CreatedAt:       view.CreatedAt,
		StartedAt:       view.StartedAt,
		CompletedAt:     view.CompletedAt,
	}
}

type ProfileResponse struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	Credits          int        `json:"credits"`
	CreditsExpiresAt *time.Time `json:"credits_expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewProfileResponse renders a profile
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:           p.UserID,
		Email:            p.Email,
		Credits:          p.Credits,
		CreditsExpiresAt: p.CreditsExpiresAt,
		CreatedAt:        p.CreatedAt,
	}
}

type RechargeRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type RechargeResponse struct {
	Credits          int        `json:"credits"`
	Added            int        `json:"added"`
	Tier             string     `json:"tier"`
	CreditsExpiresAt *time.Time `json:"credits_expires_at"`
}

type TiersResponse struct {
	Tiers []domain.Tier `json:"tiers"`
}
