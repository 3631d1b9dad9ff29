package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, user_id, prompt, aspect_ratio, image_size, model, cost, status,
	error, result_image_path, created_at, started_at, completed_at`

const profileColumns = `user_id, email, credits, credits_expires_at, created_at`

// Storage is the Postgres-backed credit ledger and job store
type Storage struct {
	db     *sqlx.DB
	policy domain.ExpiryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, policy domain.ExpiryPolicy, logger *slog.Logger) *Storage {
	if policy == "" {
		policy = domain.ExpiryPolicyNone
	}
	return &Storage{
		db:     db,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// withTx runs fn in a transaction, committing only when fn returns nil
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return persistErr("begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction",
				slog.Any("error", rbErr),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit transaction", err)
	}

	return nil
}

// effectiveCredits applies the expiry policy to a stored balance
func (s *Storage) effectiveCredits(credits int, expiresAt *time.Time) int {
	if s.policy == domain.ExpiryPolicyZero && domain.Expired(expiresAt, s.now()) {
		return 0
	}
	return credits
}

// insertTransaction appends an audit row to credit_transactions
func insertTransaction(ctx context.Context, tx *sqlx.Tx, userID string, delta int, reason string, jobID *string, meta map[string]string) error {
	metaJSON := []byte("{}")
	if len(meta) > 0 {
		var err error
		metaJSON, err = json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction meta: %w", err)
		}
	}

	query := `
		INSERT INTO credit_transactions (user_id, delta, reason, job_id, meta)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`

	if _, err := tx.ExecContext(ctx, query, userID, delta, reason, jobID, string(metaJSON)); err != nil {
		return persistErr("record credit transaction", err)
	}

	return nil
}

func persistErr(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrPersistence, action, err)
}
