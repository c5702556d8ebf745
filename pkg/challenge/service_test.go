package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/drfintrack/fintrack-auth/pkg/errors"
	"github.com/drfintrack/fintrack-auth/pkg/factor"
)

type fixture struct {
	svc     *Service
	factors *factor.Service
	clock   *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	factors := factor.NewService(factor.NewInMemFactorRepository(), "fintrack")
	svc := NewService(NewInMemChallengeRepository(), factors, WithClock(clock.Now))
	return &fixture{svc: svc, factors: factors, clock: clock}
}

func (f *fixture) enrollVerified(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	res, err := f.factors.Enroll(ctx, uuid.New(), "alice@example.com", nil)
	require.NoError(t, err)
	require.NoError(t, f.factors.MarkVerified(ctx, res.FactorID))
	return res.FactorID
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	factorID := fx.enrollVerified(t)

	ch, err := fx.svc.Create(ctx, factorID)
	require.NoError(t, err)
	assert.Equal(t, factorID, ch.FactorID)
	assert.Equal(t, StatusOpen, ch.Status)
	assert.Equal(t, fx.clock.Now(), ch.IssuedAt)
}

func TestCreate_FactorNotVerified(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	res, err := fx.factors.Enroll(ctx, uuid.New(), "alice@example.com", nil)
	require.NoError(t, err)

	_, err = fx.svc.Create(ctx, res.FactorID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeFactorNotVerified))

	// Disabled factor cannot be challenged either
	require.NoError(t, fx.factors.Disable(ctx, res.FactorID))
	_, err = fx.svc.Create(ctx, res.FactorID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeFactorNotVerified))
}

func TestConsume_SingleUse(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	factorID := fx.enrollVerified(t)

	ch, err := fx.svc.Create(ctx, factorID)
	require.NoError(t, err)

	got, err := fx.svc.Consume(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, factorID, got)

	// A second consume of the same ID is a replay
	_, err = fx.svc.Consume(ctx, ch.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeAlreadyConsumed))
}

func TestConsume_NotFound(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.svc.Consume(ctx, uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeNotFound))
}

func TestConsume_Expired(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	factorID := fx.enrollVerified(t)

	ch, err := fx.svc.Create(ctx, factorID)
	require.NoError(t, err)

	fx.clock.Advance(DefaultTTL + time.Second)

	_, err = fx.svc.Consume(ctx, ch.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeExpired))

	// Expiry still consumes: a retry is a replay, not a second chance
	_, err = fx.svc.Consume(ctx, ch.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeAlreadyConsumed))
}

func TestConsume_WithinTTL(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	factorID := fx.enrollVerified(t)

	ch, err := fx.svc.Create(ctx, factorID)
	require.NoError(t, err)

	fx.clock.Advance(DefaultTTL - time.Second)

	_, err = fx.svc.Consume(ctx, ch.ID)
	assert.NoError(t, err)
}

func TestPruneExpired(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	factorID := fx.enrollVerified(t)

	ch, err := fx.svc.Create(ctx, factorID)
	require.NoError(t, err)

	fx.clock.Advance(2 * DefaultTTL)
	require.NoError(t, fx.svc.PruneExpired(ctx))

	_, err = fx.svc.Consume(ctx, ch.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeChallengeNotFound))
}
