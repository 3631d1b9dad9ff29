package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/jmoiron/sqlx"
)

// GetJob retrieves a job owned by userID
func (s *Storage) GetJob(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1 AND user_id = $2`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, jobID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get job", err)
	}

	return &job, nil
}

// ListJobs returns the user's jobs newest first
func (s *Storage) ListJobs(ctx context.Context, userID string, limit, offset int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, userID, limit, offset); err != nil {
		return nil, persistErr("list jobs", err)
	}

	return jobs, nil
}

// SetProcessing claims a queued job. It reports false when the job already
// left the queued state or does not exist.
func (s *Storage) SetProcessing(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE generation_jobs
		SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusProcessing, domain.JobStatusQueued)
	if err != nil {
		return false, persistErr("claim job", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, persistErr("get rows affected", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Failed to claim job - already claimed or not found",
			slog.String("job_id", jobID),
		)
		return false, nil
	}

	return true, nil
}

// SetSucceeded records the artifact path on a processing job and clears any error
func (s *Storage) SetSucceeded(ctx context.Context, jobID, artifactPath string) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, result_image_path = $3, error = NULL, completed_at = NOW()
		WHERE id = $1 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusSucceeded, artifactPath, domain.JobStatusProcessing)
	if err != nil {
		return persistErr("mark job succeeded", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistErr("get rows affected", err)
	}

	if rowsAffected == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// SetFailedAndRefund marks a processing job failed and credits the refund to
// its owner in one transaction. A job that is not processing is left untouched
// and nothing is refunded.
func (s *Storage) SetFailedAndRefund(ctx context.Context, jobID, errorMessage string, refundAmount int) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE generation_jobs
			SET status = $2, error = $3, result_image_path = NULL, completed_at = NOW()
			WHERE id = $1 AND status = $4
			RETURNING user_id
		`

		var userID string
		err := tx.GetContext(ctx, &userID, query, jobID, domain.JobStatusFailed, errorMessage, domain.JobStatusProcessing)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInvalidTransition
		}
		if err != nil {
			return persistErr("mark job failed", err)
		}

		if refundAmount <= 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET credits = credits + $2, updated_at = NOW() WHERE user_id = $1`,
			userID, refundAmount,
		); err != nil {
			return persistErr("refund credits", err)
		}

		return insertTransaction(ctx, tx, userID, refundAmount, domain.ReasonGenerationRefund, &jobID, nil)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Job failed and credits refunded",
		slog.String("job_id", jobID),
		slog.Int("refund", refundAmount),
	)

	return nil
}

// DeleteJob removes a job owned by userID and returns its artifact path
func (s *Storage) DeleteJob(ctx context.Context, userID, jobID string) (domain.DeleteResult, error) {
	query := `DELETE FROM generation_jobs WHERE id = $1 AND user_id = $2 RETURNING result_image_path`

	var path sql.NullString
	err := s.db.QueryRowContext(ctx, query, jobID, userID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeleteResult{}, nil
	}
	if err != nil {
		return domain.DeleteResult{}, persistErr("delete job", err)
	}

	return domain.DeleteResult{Deleted: true, ArtifactPath: path.String}, nil
}
