package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
	"github.com/drfintrack/fintrack-auth/pkg/tokengenerator"
)

// Service is the identity provider: it authenticates email/password
// credentials and issues sessions. Authentication failures are uniform
// (unknown email and wrong password are indistinguishable to callers).
type Service struct {
	repo   UserRepository
	hasher PasswordHasher
	tokens *tokengenerator.TokenService
}

// NewService creates a new identity service
func NewService(repo UserRepository, hasher PasswordHasher, tokens *tokengenerator.TokenService) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register creates a new user with a hashed password. Used for
// bootstrapping and tests; drFinTrack signup flows live elsewhere.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	if email == "" {
		return User{}, apperrors.InvalidInput("email", "must not be empty")
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to hash password")
	}
	u, err := s.repo.CreateUser(ctx, CreateUserParams{Email: email, Password: hashed})
	if err != nil {
		return User{}, apperrors.UpstreamUnavailable(err, "failed to create user")
	}
	slog.Info("Registered user", "userID", u.ID)
	return u, nil
}

// Authenticate checks email/password credentials and returns the user ID.
func (s *Service) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	u, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// Burn a hash comparison anyway so unknown emails take as long
		// as wrong passwords.
		_, _ = s.hasher.Verify(password, dummyHash)
		return uuid.Nil, apperrors.InvalidCredentials()
	}
	if err != nil {
		return uuid.Nil, apperrors.UpstreamUnavailable(err, "failed to look up user")
	}

	match, err := s.hasher.Verify(password, u.Password)
	if err != nil {
		return uuid.Nil, apperrors.UpstreamUnavailable(err, "failed to verify password")
	}
	if !match {
		slog.Warn("Password authentication failed", "userID", u.ID)
		return uuid.Nil, apperrors.InvalidCredentials()
	}
	return u.ID, nil
}

// VerifyPassword re-proves the password for an already identified user.
func (s *Service) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error {
	u, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return apperrors.InvalidCredentials()
	}
	if err != nil {
		return apperrors.UpstreamUnavailable(err, "failed to look up user")
	}

	match, err := s.hasher.Verify(password, u.Password)
	if err != nil {
		return apperrors.UpstreamUnavailable(err, "failed to verify password")
	}
	if !match {
		slog.Warn("Password re-authentication failed", "userID", userID)
		return apperrors.InvalidCredentials()
	}
	return nil
}

// GetUser retrieves a user record by ID.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, apperrors.NotAuthenticated("unknown user")
	}
	if err != nil {
		return User{}, apperrors.UpstreamUnavailable(err, "failed to look up user")
	}
	return u, nil
}

// IssueSession issues the full access/refresh token pair for a user.
func (s *Service) IssueSession(ctx context.Context, userID uuid.UUID) (map[string]tokengenerator.TokenValue, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.NotAuthenticated("unknown user")
	}
	if err != nil {
		return nil, apperrors.UpstreamUnavailable(err, "failed to look up user")
	}

	tokens, err := s.tokens.GenerateTokens(u.ID.String(), map[string]interface{}{
		"email": u.Email,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to issue session")
	}
	return tokens, nil
}

// dummyHash is a valid bcrypt hash of an unguessable value, used to
// equalize timing for unknown-email authentication attempts.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
