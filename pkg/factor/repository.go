package factor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an MFA factor.
type Status string

const (
	// StatusUnverified means the factor was created but the owner has not
	// yet proven possession of the secret.
	StatusUnverified Status = "unverified"
	// StatusVerified means the factor is active and usable for login
	// challenges.
	StatusVerified Status = "verified"
	// StatusDisabled is terminal; the secret and pending backup codes are
	// discarded and must never be reused.
	StatusDisabled Status = "disabled"
)

// ErrFactorNotFound is returned when no factor matches the lookup.
var ErrFactorNotFound = errors.New("factor not found")

// MfaFactor represents one enrolled TOTP factor for a user.
// BackupCodes holds the set minted at enrollment; it is copied to the
// user's profile when the factor is verified and cleared by that same
// transition.
type MfaFactor struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Secret      string
	Status      Status
	BackupCodes []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FactorSummary is the externally visible view of a factor. It never
// carries the secret.
type FactorSummary struct {
	ID        uuid.UUID `json:"factor_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateFactorParams represents parameters for creating a factor
type CreateFactorParams struct {
	UserID      uuid.UUID
	Secret      string
	BackupCodes []string
}

// FactorRepository defines the persistence contract for MFA factors.
// MarkVerified and DisableFactor are compare-and-set operations: they
// report false when the row was not in a state permitting the
// transition, so concurrent callers cannot both win.
type FactorRepository interface {
	CreateFactor(ctx context.Context, params CreateFactorParams) (MfaFactor, error)
	GetFactorByID(ctx context.Context, id uuid.UUID) (MfaFactor, error)
	FindFactorsByUserID(ctx context.Context, userID uuid.UUID) ([]MfaFactor, error)
	FindFactorByUserIDAndStatus(ctx context.Context, userID uuid.UUID, status Status) (MfaFactor, error)
	// MarkVerified transitions unverified -> verified and clears the
	// pending backup codes held on the row.
	MarkVerified(ctx context.Context, id uuid.UUID) (bool, error)
	// DisableFactor transitions any non-disabled state to disabled and
	// nulls the secret and pending backup codes.
	DisableFactor(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteFactorsByUserIDAndStatus(ctx context.Context, userID uuid.UUID, status Status) error
}
