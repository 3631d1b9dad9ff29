package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GetProfile returns the caller's balance, creating an empty profile on first access
func (s *Storage) GetProfile(ctx context.Context, userID, email string) (*domain.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, email)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE profiles.email END,
		    updated_at = NOW()
		RETURNING ` + profileColumns

	var profile domain.Profile
	if err := s.db.GetContext(ctx, &profile, query, userID, email); err != nil {
		return nil, persistErr("upsert profile", err)
	}

	profile.Credits = s.effectiveCredits(profile.Credits, profile.CreditsExpiresAt)

	return &profile, nil
}

// ReserveAndCreateJob debits cost and inserts a queued job in one transaction.
// Nothing is written when the balance cannot cover the cost.
func (s *Storage) ReserveAndCreateJob(ctx context.Context, params domain.JobParams, cost int) (*domain.Job, error) {
	var job domain.Job

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var balance struct {
			Credits   int        `db:"credits"`
			ExpiresAt *time.Time `db:"credits_expires_at"`
		}
		err := tx.GetContext(ctx, &balance,
			`SELECT credits, credits_expires_at FROM profiles WHERE user_id = $1 FOR UPDATE`,
			params.UserID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrInsufficientCredits
		}
		if err != nil {
			return persistErr("lock balance", err)
		}

		if s.effectiveCredits(balance.Credits, balance.ExpiresAt) < cost {
			return domain.ErrInsufficientCredits
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET credits = credits - $2, updated_at = NOW() WHERE user_id = $1`,
			params.UserID, cost,
		); err != nil {
			return persistErr("debit credits", err)
		}

		insert := `
			INSERT INTO generation_jobs (id, user_id, prompt, aspect_ratio, image_size, model, cost, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + jobColumns

		if err := tx.GetContext(ctx, &job, insert,
			uuid.NewString(),
			params.UserID,
			params.Prompt,
			params.AspectRatio,
			params.ImageSize,
			params.Model,
			cost,
			domain.JobStatusQueued,
		); err != nil {
			return persistErr("create job", err)
		}

		return insertTransaction(ctx, tx, params.UserID, -cost, domain.ReasonGenerationReserve, &job.ID, nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credits reserved for job",
		slog.String("job_id", job.ID),
		slog.String("user_id", job.UserID),
		slog.Int("cost", cost),
	)

	return &job, nil
}

// Refund credits amount back to the job's owner and returns the new balance.
// It is an operator action; the pipeline refunds through SetFailedAndRefund.
func (s *Storage) Refund(ctx context.Context, jobID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidInput
	}
	if reason == "" {
		reason = domain.ReasonManualRefund
	}

	var credits int

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var userID string
		err := tx.GetContext(ctx, &userID, `SELECT user_id FROM generation_jobs WHERE id = $1`, jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return persistErr("find job owner", err)
		}

		if err := tx.GetContext(ctx, &credits,
			`UPDATE profiles SET credits = credits + $2, updated_at = NOW() WHERE user_id = $1 RETURNING credits`,
			userID, amount,
		); err != nil {
			return persistErr("credit refund", err)
		}

		return insertTransaction(ctx, tx, userID, amount, reason, &jobID, nil)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Credits refunded",
		slog.String("job_id", jobID),
		slog.Int("amount", amount),
		slog.String("reason", reason),
	)

	return credits, nil
}

// Recharge adds a tier's credits and extends the expiry by the tier's validity
func (s *Storage) Recharge(ctx context.Context, userID string, tier domain.Tier) (*domain.Profile, error) {
	var profile domain.Profile

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			userID,
		); err != nil {
			return persistErr("ensure profile", err)
		}

		var balance struct {
			Credits   int        `db:"credits"`
			ExpiresAt *time.Time `db:"credits_expires_at"`
		}
		if err := tx.GetContext(ctx, &balance,
			`SELECT credits, credits_expires_at FROM profiles WHERE user_id = $1 FOR UPDATE`,
			userID,
		); err != nil {
			return persistErr("lock balance", err)
		}

		base := s.effectiveCredits(balance.Credits, balance.ExpiresAt)
		if forfeited := balance.Credits - base; forfeited > 0 {
			if err := insertTransaction(ctx, tx, userID, -forfeited, domain.ReasonExpiry, nil, nil); err != nil {
				return err
			}
		}

		expiresAt := domain.ExtendExpiry(balance.ExpiresAt, tier.Validity, s.now())

		update := `
			UPDATE profiles
			SET credits = $2, credits_expires_at = $3, updated_at = NOW()
			WHERE user_id = $1
			RETURNING ` + profileColumns

		if err := tx.GetContext(ctx, &profile, update, userID, base+tier.Credits, expiresAt); err != nil {
			return persistErr("apply recharge", err)
		}

		return insertTransaction(ctx, tx, userID, tier.Credits, domain.ReasonRecharge, nil, map[string]string{"tier": tier.Key})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credits recharged",
		slog.String("user_id", userID),
		slog.String("tier", tier.Key),
		slog.Int("added", tier.Credits),
		slog.Int("credits", profile.Credits),
	)

	return &profile, nil
}

// ExpireBalances zeroes every positive balance whose expiry has passed and
// records the forfeited amount. It returns the number of balances zeroed.
func (s *Storage) ExpireBalances(ctx context.Context) (int64, error) {
	query := `
		WITH expired AS (
			SELECT user_id, credits
			FROM profiles
			WHERE credits > 0
			  AND credits_expires_at IS NOT NULL
			  AND credits_expires_at <= NOW()
			FOR UPDATE
		), zeroed AS (
			UPDATE profiles p
			SET credits = 0, updated_at = NOW()
			FROM expired e
			WHERE p.user_id = e.user_id
			RETURNING p.user_id, e.credits
		)
		INSERT INTO credit_transactions (user_id, delta, reason, meta)
		SELECT user_id, -credits, $1, '{}'::jsonb FROM zeroed
	`

	result, err := s.db.ExecContext(ctx, query, domain.ReasonExpiry)
	if err != nil {
		return 0, persistErr("expire balances", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, persistErr("get rows affected", err)
	}

	if rowsAffected > 0 {
		s.logger.Info("Expired credit balances zeroed",
			slog.Int64("count", rowsAffected),
		)
	}

	return rowsAffected, nil
}
