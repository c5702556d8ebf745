package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProfileRepository implements ProfileRepository using PostgreSQL
type PostgresProfileRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresProfileRepository creates a new PostgreSQL-based profile repository
func NewPostgresProfileRepository(pool *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

const getProfileSQL = `
SELECT user_id, two_factor_enabled, backup_codes, updated_at
FROM user_profile
WHERE user_id = $1
`

// GetProfile retrieves a user's profile
func (r *PostgresProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	var p Profile
	var codes []string
	err := r.pool.QueryRow(ctx, getProfileSQL, userID).
		Scan(&p.UserID, &p.TwoFactorEnabled, &codes, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	p.BackupCodes = codes
	return p, nil
}

const setTwoFactorEnabledSQL = `
INSERT INTO user_profile (user_id, two_factor_enabled, backup_codes, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE
SET two_factor_enabled = EXCLUDED.two_factor_enabled,
    backup_codes = EXCLUDED.backup_codes,
    updated_at = now()
`

// SetTwoFactorEnabled upserts the enabled flag and backup code set
func (r *PostgresProfileRepository) SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool, backupCodes []string) error {
	if backupCodes == nil {
		backupCodes = []string{}
	}
	_, err := r.pool.Exec(ctx, setTwoFactorEnabledSQL, userID, enabled, backupCodes)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

const getBackupCodesSQL = `
SELECT backup_codes
FROM user_profile
WHERE user_id = $1
`

// GetBackupCodes returns the user's unconsumed backup codes
func (r *PostgresProfileRepository) GetBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var codes []string
	err := r.pool.QueryRow(ctx, getBackupCodesSQL, userID).Scan(&codes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup codes: %w", err)
	}
	return codes, nil
}

const consumeBackupCodeSQL = `
UPDATE user_profile
SET backup_codes = array_remove(backup_codes, $2), updated_at = now()
WHERE user_id = $1 AND $2 = ANY(backup_codes)
`

// ConsumeBackupCode atomically removes one code from the set. The ANY
// predicate plus row-level locking makes concurrent submissions of the
// same code race to a single winner.
func (r *PostgresProfileRepository) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, consumeBackupCodeSQL, userID, code)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
