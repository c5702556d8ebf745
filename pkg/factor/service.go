package factor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
	"github.com/drfintrack/fintrack-auth/pkg/totp"
)

// EnrollResult is returned once, at enrollment time. The secret and
// provisioning URI are never exposed again afterwards.
type EnrollResult struct {
	FactorID  uuid.UUID
	Secret    string
	QRPayload string
}

// Service tracks the enrollment state of users' MFA factors.
type Service struct {
	repo   FactorRepository
	issuer string
}

// NewService creates a new factor registry service. The issuer is the
// label embedded in provisioning URIs shown by authenticator apps.
func NewService(repo FactorRepository, issuer string) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Enroll generates a fresh TOTP secret and creates a factor in
// unverified state. A verified factor already on record fails with
// AlreadyEnrolled; a stale unverified factor is silently replaced with a
// new secret. The pending backup codes ride on the factor row until the
// first successful verification.
func (s *Service) Enroll(ctx context.Context, userID uuid.UUID, accountName string, backupCodes []string) (EnrollResult, error) {
	_, err := s.repo.FindFactorByUserIDAndStatus(ctx, userID, StatusVerified)
	if err == nil {
		return EnrollResult{}, apperrors.New(apperrors.ErrCodeAlreadyEnrolled, "a verified factor already exists")
	}
	if !errors.Is(err, ErrFactorNotFound) {
		return EnrollResult{}, apperrors.UpstreamUnavailable(err, "failed to look up existing factor")
	}

	if err := s.repo.DeleteFactorsByUserIDAndStatus(ctx, userID, StatusUnverified); err != nil {
		return EnrollResult{}, apperrors.UpstreamUnavailable(err, "failed to replace stale factor")
	}

	key, err := totp.GenerateSecret(s.issuer, accountName)
	if err != nil {
		return EnrollResult{}, err
	}

	f, err := s.repo.CreateFactor(ctx, CreateFactorParams{
		UserID:      userID,
		Secret:      key.Secret,
		BackupCodes: backupCodes,
	})
	if err != nil {
		return EnrollResult{}, apperrors.UpstreamUnavailable(err, "failed to create factor")
	}

	slog.Info("Enrolled new MFA factor", "userID", userID, "factorID", f.ID)
	return EnrollResult{FactorID: f.ID, Secret: key.Secret, QRPayload: key.URL}, nil
}

// GetFactor retrieves a factor by ID, secret included. For internal use
// by the orchestrator only.
func (s *Service) GetFactor(ctx context.Context, factorID uuid.UUID) (MfaFactor, error) {
	f, err := s.repo.GetFactorByID(ctx, factorID)
	if errors.Is(err, ErrFactorNotFound) {
		return MfaFactor{}, apperrors.Newf(apperrors.ErrCodeInvalidTransition, "factor not found: %s", factorID)
	}
	if err != nil {
		return MfaFactor{}, apperrors.UpstreamUnavailable(err, "failed to get factor")
	}
	return f, nil
}

// FindVerifiedFactor retrieves the user's active factor, if any.
func (s *Service) FindVerifiedFactor(ctx context.Context, userID uuid.UUID) (MfaFactor, error) {
	f, err := s.repo.FindFactorByUserIDAndStatus(ctx, userID, StatusVerified)
	if errors.Is(err, ErrFactorNotFound) {
		return MfaFactor{}, apperrors.New(apperrors.ErrCodeFactorNotVerified, "no verified factor for user")
	}
	if err != nil {
		return MfaFactor{}, apperrors.UpstreamUnavailable(err, "failed to find verified factor")
	}
	return f, nil
}

// ListFactors returns summaries only; the secret is never included.
func (s *Service) ListFactors(ctx context.Context, userID uuid.UUID) ([]FactorSummary, error) {
	factors, err := s.repo.FindFactorsByUserID(ctx, userID)
	if err != nil {
		slog.Error("Failed to list factors", "userID", userID, "error", err)
		return nil, apperrors.UpstreamUnavailable(err, "failed to list factors")
	}

	summaries := make([]FactorSummary, 0, len(factors))
	for _, f := range factors {
		summaries = append(summaries, FactorSummary{
			ID:        f.ID,
			Status:    f.Status,
			CreatedAt: f.CreatedAt,
		})
	}
	return summaries, nil
}

// MarkVerified transitions unverified -> verified exactly once. Any other
// starting state, or losing the compare-and-set race to a concurrent
// confirm, yields InvalidTransition and no mutation.
func (s *Service) MarkVerified(ctx context.Context, factorID uuid.UUID) error {
	ok, err := s.repo.MarkVerified(ctx, factorID)
	if errors.Is(err, ErrFactorNotFound) {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition, "factor not found: %s", factorID)
	}
	if err != nil {
		return apperrors.UpstreamUnavailable(err, "failed to mark factor verified")
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeInvalidTransition, "factor is not awaiting verification")
	}
	slog.Info("MFA factor verified", "factorID", factorID)
	return nil
}

// Disable transitions any non-disabled state to disabled, discarding the
// secret and pending backup codes. Disabling an already-disabled factor
// is a no-op, not an error.
func (s *Service) Disable(ctx context.Context, factorID uuid.UUID) error {
	ok, err := s.repo.DisableFactor(ctx, factorID)
	if errors.Is(err, ErrFactorNotFound) {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition, "factor not found: %s", factorID)
	}
	if err != nil {
		return apperrors.UpstreamUnavailable(err, "failed to disable factor")
	}
	if ok {
		slog.Info("MFA factor disabled", "factorID", factorID)
	}
	return nil
}
