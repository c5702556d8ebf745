package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrProfileNotFound is returned when no profile row exists for a user.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the per-user record consulted at login time. BackupCodes
// holds the unconsumed recovery codes; an empty slice once 2FA is off.
type Profile struct {
	UserID           uuid.UUID
	TwoFactorEnabled bool
	BackupCodes      []string
	UpdatedAt        time.Time
}

// ProfileRepository defines the persistence contract for profiles.
// ConsumeBackupCode must be an atomic check-and-remove on the specific
// code so two concurrent submissions cannot both succeed; it also
// satisfies backupcode.CodeStore.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	// SetTwoFactorEnabled upserts the enabled flag and replaces the
	// backup code set wholesale.
	SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool, backupCodes []string) error
	GetBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error)
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}
