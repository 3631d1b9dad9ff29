package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/genesis-be/internal/api/dto"
	"github.com/cuongbtq/genesis-be/internal/generation"
	"github.com/gin-gonic/gin"
)

// SubmitGeneration handles POST /api/v1/generations
// Reserves credits and queues the job; the result is polled
func (h *JobHandler) SubmitGeneration(c *gin.Context) {
	var req dto.SubmitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.service.Submit(c.Request.Context(), generation.SubmitRequest{
		UserID:          userID(c),
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		AspectRatio:     req.AspectRatio,
		ImageSize:       req.ImageSize,
		Model:           req.Model,
	})
	if err != nil {
		h.respondError(c, err, "submit generation")
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitGenerationResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

// GetJob handles GET /api/v1/generations/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	view, err := h.service.GetJob(c.Request.Context(), userID(c), c.Param("job_id"))
	if err != nil {
		h.respondError(c, err, "get job")
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{Job: dto.NewJobDTO(*view)})
}

// ListHistory handles GET /api/v1/generations/history
// Lists the caller's jobs newest first
func (h *JobHandler) ListHistory(c *gin.Context) {
	var req dto.ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	limit := generation.DefaultHistoryLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	history, err := h.service.History(c.Request.Context(), userID(c), limit, req.Offset)
	if err != nil {
		h.respondError(c, err, "list history")
		return
	}

	items := make([]dto.JobDTO, len(history.Items))
	for i, view := range history.Items {
		items[i] = dto.NewJobDTO(view)
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{
		Items:   items,
		Limit:   history.Limit,
		Offset:  history.Offset,
		HasMore: history.HasMore,
	})
}

// DeleteJob handles DELETE /api/v1/generations/:job_id
// Removes the job record and then its artifact
func (h *JobHandler) DeleteJob(c *gin.Context) {
	deleted, err := h.service.DeleteJob(c.Request.Context(), userID(c), c.Param("job_id"))
	if err != nil {
		h.logger.Error("Failed to delete job",
			slog.String("job_id", c.Param("job_id")),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.DeleteJobResponse{
			Error: "Failed to delete job",
		})
		return
	}

	if !deleted {
		c.JSON(http.StatusNotFound, dto.DeleteJobResponse{
			Error: "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, dto.DeleteJobResponse{Deleted: true})
}
