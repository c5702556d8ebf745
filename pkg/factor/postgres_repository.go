package factor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFactorRepository implements FactorRepository using PostgreSQL
type PostgresFactorRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFactorRepository creates a new PostgreSQL-based factor repository
func NewPostgresFactorRepository(pool *pgxpool.Pool) *PostgresFactorRepository {
	return &PostgresFactorRepository{pool: pool}
}

const createFactorSQL = `
INSERT INTO mfa_factor (id, user_id, secret, status, backup_codes, created_at, updated_at)
VALUES ($1, $2, $3, 'unverified', $4, now(), now())
RETURNING id, user_id, secret, status, backup_codes, created_at, updated_at
`

// CreateFactor creates a new factor in unverified state
func (r *PostgresFactorRepository) CreateFactor(ctx context.Context, params CreateFactorParams) (MfaFactor, error) {
	row := r.pool.QueryRow(ctx, createFactorSQL, uuid.New(), params.UserID, params.Secret, params.BackupCodes)
	return scanFactor(row)
}

const getFactorByIDSQL = `
SELECT id, user_id, secret, status, backup_codes, created_at, updated_at
FROM mfa_factor
WHERE id = $1
`

// GetFactorByID retrieves a factor by ID
func (r *PostgresFactorRepository) GetFactorByID(ctx context.Context, id uuid.UUID) (MfaFactor, error) {
	f, err := scanFactor(r.pool.QueryRow(ctx, getFactorByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MfaFactor{}, ErrFactorNotFound
	}
	return f, err
}

const findFactorsByUserIDSQL = `
SELECT id, user_id, secret, status, backup_codes, created_at, updated_at
FROM mfa_factor
WHERE user_id = $1
ORDER BY created_at
`

// FindFactorsByUserID retrieves all factors for a user
func (r *PostgresFactorRepository) FindFactorsByUserID(ctx context.Context, userID uuid.UUID) ([]MfaFactor, error) {
	rows, err := r.pool.Query(ctx, findFactorsByUserIDSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query factors: %w", err)
	}
	defer rows.Close()

	var out []MfaFactor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const findFactorByUserIDAndStatusSQL = `
SELECT id, user_id, secret, status, backup_codes, created_at, updated_at
FROM mfa_factor
WHERE user_id = $1 AND status = $2
LIMIT 1
`

// FindFactorByUserIDAndStatus retrieves the user's factor in the given status
func (r *PostgresFactorRepository) FindFactorByUserIDAndStatus(ctx context.Context, userID uuid.UUID, status Status) (MfaFactor, error) {
	f, err := scanFactor(r.pool.QueryRow(ctx, findFactorByUserIDAndStatusSQL, userID, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return MfaFactor{}, ErrFactorNotFound
	}
	return f, err
}

const markVerifiedSQL = `
UPDATE mfa_factor
SET status = 'verified', backup_codes = NULL, updated_at = now()
WHERE id = $1 AND status = 'unverified'
`

// MarkVerified transitions unverified -> verified. The status predicate
// makes this a compare-and-set: of two concurrent confirms only one
// update reports an affected row.
func (r *PostgresFactorRepository) MarkVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, markVerifiedSQL, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark factor verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const disableFactorSQL = `
UPDATE mfa_factor
SET status = 'disabled', secret = NULL, backup_codes = NULL, updated_at = now()
WHERE id = $1 AND status <> 'disabled'
`

// DisableFactor transitions any non-disabled state to disabled and nulls
// the secret
func (r *PostgresFactorRepository) DisableFactor(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, disableFactorSQL, id)
	if err != nil {
		return false, fmt.Errorf("failed to disable factor: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const deleteFactorsByUserIDAndStatusSQL = `
DELETE FROM mfa_factor
WHERE user_id = $1 AND status = $2
`

// DeleteFactorsByUserIDAndStatus removes the user's factors in the given status
func (r *PostgresFactorRepository) DeleteFactorsByUserIDAndStatus(ctx context.Context, userID uuid.UUID, status Status) error {
	_, err := r.pool.Exec(ctx, deleteFactorsByUserIDAndStatusSQL, userID, string(status))
	if err != nil {
		return fmt.Errorf("failed to delete factors: %w", err)
	}
	return nil
}

func scanFactor(row pgx.Row) (MfaFactor, error) {
	var f MfaFactor
	var secret *string
	var codes []string
	err := row.Scan(&f.ID, &f.UserID, &secret, &f.Status, &codes, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return MfaFactor{}, err
	}
	if secret != nil {
		f.Secret = *secret
	}
	f.BackupCodes = codes
	return f, nil
}
