package challenge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
	"github.com/drfintrack/fintrack-auth/pkg/factor"
)

// DefaultTTL bounds how long an open challenge stays consumable.
const DefaultTTL = 5 * time.Minute

// FactorGetter is the slice of the factor registry the broker needs.
type FactorGetter interface {
	GetFactor(ctx context.Context, factorID uuid.UUID) (factor.MfaFactor, error)
}

// Service issues short-lived, single-use challenges for verified factors.
type Service struct {
	repo    ChallengeRepository
	factors FactorGetter
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a challenge Service
type Option func(*Service)

// WithTTL overrides the challenge expiry window
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithClock injects a time source for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new challenge broker
func NewService(repo ChallengeRepository, factors FactorGetter, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		factors: factors,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new open challenge for a verified factor. Fails with
// FactorNotVerified when the factor is unverified or disabled.
func (s *Service) Create(ctx context.Context, factorID uuid.UUID) (Challenge, error) {
	f, err := s.factors.GetFactor(ctx, factorID)
	if err != nil {
		return Challenge{}, err
	}
	if f.Status != factor.StatusVerified {
		return Challenge{}, apperrors.Newf(apperrors.ErrCodeFactorNotVerified, "factor %s is %s", factorID, f.Status)
	}

	ch := Challenge{
		ID:       uuid.New(),
		FactorID: factorID,
		IssuedAt: s.now().UTC(),
		Status:   StatusOpen,
	}
	if err := s.repo.CreateChallenge(ctx, ch); err != nil {
		slog.Error("Failed to create challenge", "factorID", factorID, "error", err)
		return Challenge{}, apperrors.UpstreamUnavailable(err, "failed to create challenge")
	}
	return ch, nil
}

// Consume marks the challenge consumed and returns the factor it
// targets. The first call wins regardless of the later verification
// outcome; replays yield ChallengeAlreadyConsumed and a challenge past
// its TTL yields ChallengeExpired.
func (s *Service) Consume(ctx context.Context, challengeID uuid.UUID) (uuid.UUID, error) {
	ch, err := s.repo.ConsumeChallenge(ctx, challengeID)
	if errors.Is(err, ErrChallengeNotFound) {
		return uuid.Nil, apperrors.Newf(apperrors.ErrCodeChallengeNotFound, "challenge not found: %s", challengeID)
	}
	if errors.Is(err, ErrChallengeAlreadyConsumed) {
		return uuid.Nil, apperrors.Newf(apperrors.ErrCodeChallengeAlreadyConsumed, "challenge already consumed: %s", challengeID)
	}
	if err != nil {
		return uuid.Nil, apperrors.UpstreamUnavailable(err, "failed to consume challenge")
	}

	if s.now().UTC().Sub(ch.IssuedAt) > s.ttl {
		return uuid.Nil, apperrors.Newf(apperrors.ErrCodeChallengeExpired, "challenge expired: %s", challengeID)
	}
	return ch.FactorID, nil
}

// PruneExpired removes consumed and stale challenge rows.
func (s *Service) PruneExpired(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.ttl)
	n, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return apperrors.UpstreamUnavailable(err, "failed to prune challenges")
	}
	if n > 0 {
		slog.Debug("Pruned stale challenges", "count", n)
	}
	return nil
}
