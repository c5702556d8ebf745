package twofa

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const testPassword = "correct horse battery staple"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	svc      *Service
	factors  *factor.Service
	profiles *profile.Service
	notifier *notification.MockNotifier
	clock    *fakeClock
	user     identity.User
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}

	userRepo := identity.NewInMemUserRepository()
	tokens := tokengenerator.NewTokenService(
		tokengenerator.NewJwtTokenGenerator("test-signing-secret", "fintrack-auth", "fintrack"))
	identities := identity.NewService(userRepo, &identity.BcryptHasher{}, tokens)

	factors := factor.NewService(factor.NewInMemFactorRepository(), "drFinTrack")
	challenges := challenge.NewService(challenge.NewInMemChallengeRepository(), factors,
		challenge.WithClock(clock.Now))

	profileRepo := profile.NewInMemProfileRepository()
	profiles := profile.NewService(profileRepo)
	backupCodes := backupcode.NewService(profileRepo)

	notifier := notification.NewMockNotifier()
	allOpts := append([]Option{WithNotifier(notifier), WithClock(clock.Now)}, opts...)
	svc := NewService(identities, factors, challenges, profiles, backupCodes, allOpts...)

	user, err := identities.Register(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	return &testEnv{
		svc:      svc,
		factors:  factors,
		profiles: profiles,
		notifier: notifier,
		clock:    clock,
		user:     user,
	}
}

// enrollAndConfirm walks a user through the full enrollment handshake.
func enrollAndConfirm(t *testing.T, env *testEnv) EnrollmentStart {
	t.Helper()
	ctx := context.Background()

	start, err := env.svc.StartEnrollment(ctx, env.user.ID, testPassword)
	require.NoError(t, err)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.svc.ConfirmEnrollment(ctx, start.FactorID, code))

	return start
}

func TestEnrollmentLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	start, err := env.svc.StartEnrollment(ctx, env.user.ID, testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, start.Secret)
	assert.Contains(t, start.QRPayload, "otpauth://totp/")
	assert.Contains(t, start.QRPayload, "drFinTrack")
	require.Len(t, start.BackupCodes, 10)

	summaries, err := env.svc.ListFactors(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, factor.StatusUnverified, summaries[0].Status)

	// Wrong first code leaves the factor unverified and the profile off.
	err = env.svc.ConfirmEnrollment(ctx, start.FactorID, "000000")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCode))

	p, err := env.profiles.GetProfile(ctx, env.user.ID)
	require.NoError(t, err)
	assert.False(t, p.TwoFactorEnabled)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.svc.ConfirmEnrollment(ctx, start.FactorID, code))

	summaries, err = env.svc.ListFactors(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, factor.StatusVerified, summaries[0].Status)

	p, err = env.profiles.GetProfile(ctx, env.user.ID)
	require.NoError(t, err)
	assert.True(t, p.TwoFactorEnabled)
	assert.Len(t, p.BackupCodes, 10)

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, env.user.Email, sent[0].To)
	assert.Contains(t, sent[0].Subject, "enabled")
}

func TestStartEnrollmentWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.StartEnrollment(context.Background(), env.user.ID, "not the password")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCredentials))
}

func TestStartEnrollmentAlreadyEnrolled(t *testing.T) {
	env := newTestEnv(t)
	enrollAndConfirm(t, env)

	_, err := env.svc.StartEnrollment(context.Background(), env.user.ID, testPassword)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadyEnrolled))
}

func TestConfirmEnrollmentAlreadyVerified(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	err = env.svc.ConfirmEnrollment(ctx, start.FactorID, code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidTransition))
}

func TestLoginWithoutTwoFactor(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.LoginChallenge(context.Background(), env.user.Email, testPassword)
	require.NoError(t, err)
	assert.False(t, res.RequiresTwoFA)
	require.Contains(t, res.Tokens, tokengenerator.ACCESS_TOKEN_NAME)
	require.Contains(t, res.Tokens, tokengenerator.REFRESH_TOKEN_NAME)
}

func TestLoginVerifyWithTOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	res, err := env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFA)
	assert.Empty(t, res.Tokens)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	tokens, err := env.svc.LoginVerify(ctx, res.ChallengeID, code)
	require.NoError(t, err)
	assert.Contains(t, tokens, tokengenerator.ACCESS_TOKEN_NAME)

	// The challenge is spent; replaying it must not mint another session.
	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeAlreadyConsumed))
}

func TestLoginVerifyWithBackupCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	res, err := env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)

	// Submission is forgiving about case and separators.
	submitted := " " + strings.ToLower(start.BackupCodes[3]) + " "
	tokens, err := env.svc.LoginVerify(ctx, res.ChallengeID, submitted)
	require.NoError(t, err)
	assert.Contains(t, tokens, tokengenerator.ACCESS_TOKEN_NAME)

	p, err := env.profiles.GetProfile(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Len(t, p.BackupCodes, 9)
	assert.NotContains(t, p.BackupCodes, start.BackupCodes[3])
}

func TestLoginVerifyConsumedBackupCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	res, err := env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)
	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, start.BackupCodes[0])
	require.NoError(t, err)

	// The same code on a fresh challenge fails, and the failed attempt
	// still spends the challenge.
	res, err = env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)
	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, start.BackupCodes[0])
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCode))

	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, start.BackupCodes[1])
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeAlreadyConsumed))
}

func TestLoginVerifyStaleCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)

	res, err := env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)
	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCode))
}

func TestLoginVerifyExpiredChallenge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	res, err := env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)

	env.clock.Advance(6 * time.Minute)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeExpired))

	// Expiry consumed the challenge, so a retry is a replay.
	_, err = env.svc.LoginVerify(ctx, res.ChallengeID, code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeAlreadyConsumed))
}

func TestDisableWrongCodeLeavesMFAActive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	enrollAndConfirm(t, env)

	err := env.svc.Disable(ctx, env.user.ID, testPassword, "000000")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCode))

	summaries, err := env.svc.ListFactors(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, factor.StatusVerified, summaries[0].Status)

	p, err := env.profiles.GetProfile(ctx, env.user.ID)
	require.NoError(t, err)
	assert.True(t, p.TwoFactorEnabled)
}

func TestDisableWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	err = env.svc.Disable(context.Background(), env.user.ID, "not the password", code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCredentials))
}

func TestDisableWithTOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.svc.Disable(ctx, env.user.ID, testPassword, code))

	summaries, err := env.svc.ListFactors(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, factor.StatusDisabled, summaries[0].Status)

	p, err := env.profiles.GetProfile(ctx, env.user.ID)
	require.NoError(t, err)
	assert.False(t, p.TwoFactorEnabled)
	assert.Empty(t, p.BackupCodes)

	// Subsequent logins bypass 2FA entirely.
	res, err := env.svc.LoginChallenge(ctx, env.user.Email, testPassword)
	require.NoError(t, err)
	assert.False(t, res.RequiresTwoFA)
	assert.Contains(t, res.Tokens, tokengenerator.ACCESS_TOKEN_NAME)

	sent := env.notifier.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Subject, "disabled")
}

func TestDisableWithBackupCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start := enrollAndConfirm(t, env)

	require.NoError(t, env.svc.Disable(ctx, env.user.ID, testPassword, start.BackupCodes[0]))

	p, err := env.profiles.GetProfile(ctx, env.user.ID)
	require.NoError(t, err)
	assert.False(t, p.TwoFactorEnabled)
}

func TestVerificationAttemptLimiting(t *testing.T) {
	ctx := context.Background()
	// Two attempts per factor, no refill.
	env := newTestEnv(t, WithAttemptLimiter(ratelimit.NewKeyedLimiter(2, 0, time.Hour)))

	start, err := env.svc.StartEnrollment(ctx, env.user.ID, testPassword)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = env.svc.ConfirmEnrollment(ctx, start.FactorID, "000000")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidCode))
	}

	// Budget exhausted: even a correct code is refused now.
	code, err := totp.GenerateCode(start.Secret, env.clock.Now())
	require.NoError(t, err)
	err = env.svc.ConfirmEnrollment(ctx, start.FactorID, code)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRateLimitExceeded))
}
