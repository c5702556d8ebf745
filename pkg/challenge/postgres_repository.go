package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChallengeRepository implements ChallengeRepository using PostgreSQL
type PostgresChallengeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresChallengeRepository creates a new PostgreSQL-based challenge repository
func NewPostgresChallengeRepository(pool *pgxpool.Pool) *PostgresChallengeRepository {
	return &PostgresChallengeRepository{pool: pool}
}

const createChallengeSQL = `
INSERT INTO mfa_challenge (id, factor_id, issued_at, status)
VALUES ($1, $2, $3, 'open')
`

// CreateChallenge stores a new open challenge
func (r *PostgresChallengeRepository) CreateChallenge(ctx context.Context, ch Challenge) error {
	_, err := r.pool.Exec(ctx, createChallengeSQL, ch.ID, ch.FactorID, ch.IssuedAt)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

const consumeChallengeSQL = `
UPDATE mfa_challenge
SET status = 'consumed'
WHERE id = $1 AND status = 'open'
RETURNING id, factor_id, issued_at, status
`

const getChallengeSQL = `
SELECT id, factor_id, issued_at, status
FROM mfa_challenge
WHERE id = $1
`

// ConsumeChallenge atomically flips open -> consumed. The conditional
// UPDATE is the replay guard; a second consume of the same ID matches no
// row and is reported as already consumed.
func (r *PostgresChallengeRepository) ConsumeChallenge(ctx context.Context, id uuid.UUID) (Challenge, error) {
	var ch Challenge
	err := r.pool.QueryRow(ctx, consumeChallengeSQL, id).
		Scan(&ch.ID, &ch.FactorID, &ch.IssuedAt, &ch.Status)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Challenge{}, fmt.Errorf("failed to consume challenge: %w", err)
	}

	// Distinguish unknown from replayed
	err = r.pool.QueryRow(ctx, getChallengeSQL, id).
		Scan(&ch.ID, &ch.FactorID, &ch.IssuedAt, &ch.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to look up challenge: %w", err)
	}
	return Challenge{}, ErrChallengeAlreadyConsumed
}

const deleteExpiredChallengesSQL = `
DELETE FROM mfa_challenge
WHERE issued_at < $1
`

// DeleteExpiredBefore prunes challenges issued before the cutoff
func (r *PostgresChallengeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredChallengesSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}
