package profile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
)

// Service wraps the profile store consulted by the 2FA flows. A user
// without a profile row is treated as having 2FA off.
type Service struct {
	repo ProfileRepository
}

// NewService creates a new profile service
func NewService(repo ProfileRepository) *Service {
	return &Service{repo: repo}
}

// GetProfile returns the user's profile, defaulting to 2FA disabled
// when no row exists yet.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return Profile{UserID: userID}, nil
	}
	if err != nil {
		slog.Error("Failed to get profile", "userID", userID, "error", err)
		return Profile{}, apperrors.UpstreamUnavailable(err, "failed to get profile")
	}
	return p, nil
}

// EnableTwoFactor persists the enabled flag together with the freshly
// minted backup code set. Called only after the factor is verified.
func (s *Service) EnableTwoFactor(ctx context.Context, userID uuid.UUID, backupCodes []string) error {
	if err := s.repo.SetTwoFactorEnabled(ctx, userID, true, backupCodes); err != nil {
		slog.Error("Failed to enable two factor on profile", "userID", userID, "error", err)
		return apperrors.UpstreamUnavailable(err, "failed to enable two factor")
	}
	slog.Info("Two factor enabled on profile", "userID", userID)
	return nil
}

// DisableTwoFactor clears the enabled flag and discards the remaining
// backup codes.
func (s *Service) DisableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.SetTwoFactorEnabled(ctx, userID, false, nil); err != nil {
		slog.Error("Failed to disable two factor on profile", "userID", userID, "error", err)
		return apperrors.UpstreamUnavailable(err, "failed to disable two factor")
	}
	slog.Info("Two factor disabled on profile", "userID", userID)
	return nil
}
