package twofa

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drfintrack/fintrack-auth/pkg/backupcode"
	"github.com/drfintrack/fintrack-auth/pkg/challenge"
	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
	"github.com/drfintrack/fintrack-auth/pkg/factor"
	"github.com/drfintrack/fintrack-auth/pkg/identity"
	"github.com/drfintrack/fintrack-auth/pkg/notification"
	"github.com/drfintrack/fintrack-auth/pkg/profile"
	"github.com/drfintrack/fintrack-auth/pkg/ratelimit"
	"github.com/drfintrack/fintrack-auth/pkg/tokengenerator"
	"github.com/drfintrack/fintrack-auth/pkg/totp"
)

// totpCodePattern decides dispatch: a 6-digit numeric input goes to the
// TOTP verifier, anything else to the backup code store.
var totpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

type (
	// EnrollmentStart is returned once per enrollment. The secret,
	// provisioning URI and backup codes are shown to the user now and
	// never again.
	EnrollmentStart struct {
		FactorID    uuid.UUID `json:"factor_id"`
		Secret      string    `json:"secret"`
		QRPayload   string    `json:"qr_payload"`
		BackupCodes []string  `json:"backup_codes"`
	}

	// LoginResult is either a full session (2FA off) or an open
	// challenge the caller must answer with LoginVerify.
	LoginResult struct {
		RequiresTwoFA bool                                 `json:"requires_2fa"`
		ChallengeID   uuid.UUID                            `json:"challenge_id,omitempty"`
		Tokens        map[string]tokengenerator.TokenValue `json:"tokens,omitempty"`
	}
)

// Service drives the 2FA lifecycle: the enrollment state machine, the
// login-time challenge/verify flow and the disable flow. It holds no
// state between calls; every mutation goes through the factor, challenge
// and profile stores.
type Service struct {
	identities  *identity.Service
	factors     *factor.Service
	challenges  *challenge.Service
	profiles    *profile.Service
	backupCodes *backupcode.Service
	notifier    notification.Notifier
	attempts    *ratelimit.KeyedLimiter
	now         func() time.Time
}

// Option configures a twofa Service
type Option func(*Service)

// WithNotifier sets the security notification sink
func WithNotifier(n notification.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithAttemptLimiter sets the per-factor verification attempt limiter
func WithAttemptLimiter(l *ratelimit.KeyedLimiter) Option {
	return func(s *Service) {
		s.attempts = l
	}
}

// WithClock injects a time source for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the 2FA orchestrator.
func NewService(
	identities *identity.Service,
	factors *factor.Service,
	challenges *challenge.Service,
	profiles *profile.Service,
	backupCodes *backupcode.Service,
	opts ...Option,
) *Service {
	s := &Service{
		identities:  identities,
		factors:     factors,
		challenges:  challenges,
		profiles:    profiles,
		backupCodes: backupCodes,
		notifier:    notification.NoOpNotifier{},
		// 5 attempts per factor, one regained every ~30s
		attempts: ratelimit.NewKeyedLimiter(5, 0.033, time.Hour),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartEnrollment re-proves the password, creates an unverified factor
// with a fresh secret and mints the backup code set. The codes ride on
// the factor row until ConfirmEnrollment succeeds, so an abandoned
// enrollment never leaves live recovery codes on the profile.
func (s *Service) StartEnrollment(ctx context.Context, userID uuid.UUID, password string) (EnrollmentStart, error) {
	if err := s.identities.VerifyPassword(ctx, userID, password); err != nil {
		return EnrollmentStart{}, err
	}

	user, err := s.identities.GetUser(ctx, userID)
	if err != nil {
		return EnrollmentStart{}, err
	}

	codes, err := backupcode.Generate()
	if err != nil {
		return EnrollmentStart{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate backup codes")
	}

	res, err := s.factors.Enroll(ctx, userID, user.Email, codes)
	if err != nil {
		return EnrollmentStart{}, err
	}

	return EnrollmentStart{
		FactorID:    res.FactorID,
		Secret:      res.Secret,
		QRPayload:   res.QRPayload,
		BackupCodes: codes,
	}, nil
}

// ConfirmEnrollment verifies the first TOTP code against the unverified
// factor. Success flips the factor to verified exactly once and persists
// the enabled flag and backup codes to the profile; a wrong code leaves
// the factor unverified so the caller may retry.
func (s *Service) ConfirmEnrollment(ctx context.Context, factorID uuid.UUID, code string) error {
	f, err := s.factors.GetFactor(ctx, factorID)
	if err != nil {
		return err
	}
	if f.Status != factor.StatusUnverified {
		return apperrors.New(apperrors.ErrCodeInvalidTransition, "factor is not awaiting verification")
	}

	if !s.attempts.Allow(factorID.String()) {
		return apperrors.RateLimitExceeded("too many verification attempts")
	}

	if !totp.Verify(f.Secret, strings.TrimSpace(code), s.now()) {
		slog.Warn("Enrollment confirmation failed", "factorID", factorID)
		return apperrors.InvalidCode()
	}

	// The CAS inside MarkVerified decides the winner of concurrent
	// confirms; the loser gets InvalidTransition and must not persist.
	if err := s.factors.MarkVerified(ctx, factorID); err != nil {
		return err
	}

	if err := s.profiles.EnableTwoFactor(ctx, f.UserID, f.BackupCodes); err != nil {
		return err
	}
	s.attempts.Reset(factorID.String())

	s.notify(ctx, f.UserID, "Two-factor authentication enabled",
		"Two-factor authentication was enabled on your drFinTrack account.")
	return nil
}

// LoginChallenge authenticates email/password and either issues the full
// session (2FA off) or opens a challenge without issuing any session.
func (s *Service) LoginChallenge(ctx context.Context, email, password string) (LoginResult, error) {
	userID, err := s.identities.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}

	if !p.TwoFactorEnabled {
		tokens, err := s.identities.IssueSession(ctx, userID)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{RequiresTwoFA: false, Tokens: tokens}, nil
	}

	f, err := s.factors.FindVerifiedFactor(ctx, userID)
	if err != nil {
		return LoginResult{}, err
	}

	ch, err := s.challenges.Create(ctx, f.ID)
	if err != nil {
		return LoginResult{}, err
	}

	slog.Info("Login requires 2FA", "userID", userID, "challengeID", ch.ID)
	return LoginResult{RequiresTwoFA: true, ChallengeID: ch.ID}, nil
}

// LoginVerify consumes the challenge (first call wins, success or fail)
// and validates the submitted TOTP or backup code. Success issues the
// full session; failure does not reopen the challenge, so the caller
// must request a fresh LoginChallenge.
func (s *Service) LoginVerify(ctx context.Context, challengeID uuid.UUID, codeOrBackup string) (map[string]tokengenerator.TokenValue, error) {
	factorID, err := s.challenges.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	f, err := s.factors.GetFactor(ctx, factorID)
	if err != nil {
		return nil, err
	}
	if f.Status != factor.StatusVerified {
		return nil, apperrors.New(apperrors.ErrCodeFactorNotVerified, "factor is no longer active")
	}

	if !s.attempts.Allow(factorID.String()) {
		return nil, apperrors.RateLimitExceeded("too many verification attempts")
	}

	ok, err := s.verifyCodeOrBackup(ctx, f, codeOrBackup)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("Login verification failed", "factorID", factorID)
		return nil, apperrors.InvalidCode()
	}
	s.attempts.Reset(factorID.String())

	return s.identities.IssueSession(ctx, f.UserID)
}

// Disable requires re-proof of both the password and a valid code (TOTP
// or backup, verified directly against the factor, no challenge). On
// success the factor is disabled, the secret discarded, and the profile
// flag and backup codes cleared. Any failed check leaves MFA active.
func (s *Service) Disable(ctx context.Context, userID uuid.UUID, password, codeOrBackup string) error {
	if err := s.identities.VerifyPassword(ctx, userID, password); err != nil {
		return err
	}

	f, err := s.factors.FindVerifiedFactor(ctx, userID)
	if err != nil {
		return err
	}

	if !s.attempts.Allow(f.ID.String()) {
		return apperrors.RateLimitExceeded("too many verification attempts")
	}

	ok, err := s.verifyCodeOrBackup(ctx, f, codeOrBackup)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("Disable verification failed", "userID", userID, "factorID", f.ID)
		return apperrors.InvalidCode()
	}

	if err := s.factors.Disable(ctx, f.ID); err != nil {
		return err
	}
	if err := s.profiles.DisableTwoFactor(ctx, userID); err != nil {
		return err
	}
	s.attempts.Reset(f.ID.String())

	s.notify(ctx, userID, "Two-factor authentication disabled",
		"Two-factor authentication was disabled on your drFinTrack account.")
	return nil
}

// ListFactors returns the user's factor summaries, secrets excluded.
func (s *Service) ListFactors(ctx context.Context, userID uuid.UUID) ([]factor.FactorSummary, error) {
	return s.factors.ListFactors(ctx, userID)
}

// verifyCodeOrBackup dispatches on input shape: 6-digit numeric goes to
// the TOTP verifier, anything else to the backup code store. Backup
// consumption is destructive even when login later fails, matching the
// single-use guarantee.
func (s *Service) verifyCodeOrBackup(ctx context.Context, f factor.MfaFactor, input string) (bool, error) {
	trimmed := strings.TrimSpace(input)
	if totpCodePattern.MatchString(trimmed) {
		return totp.Verify(f.Secret, trimmed, s.now()), nil
	}
	return s.backupCodes.Consume(ctx, f.UserID, trimmed)
}

// notify sends a security notice; delivery problems are logged, never
// surfaced, so a mail outage cannot wedge the 2FA flows.
func (s *Service) notify(ctx context.Context, userID uuid.UUID, subject, body string) {
	user, err := s.identities.GetUser(ctx, userID)
	if err != nil {
		slog.Warn("Skipping notification, user lookup failed", "userID", userID, "error", err)
		return
	}
	if err := s.notifier.Notify(ctx, notification.Notification{
		To:      user.Email,
		Subject: subject,
		Body:    body,
	}); err != nil {
		slog.Warn("Failed to send security notification", "userID", userID, "error", err)
	}
}
