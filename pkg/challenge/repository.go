package challenge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a challenge.
type Status string

const (
	StatusOpen     Status = "open"
	StatusConsumed Status = "consumed"
)

// Sentinel errors for challenge lookup and replay
var (
	ErrChallengeNotFound        = errors.New("challenge not found")
	ErrChallengeAlreadyConsumed = errors.New("challenge already consumed")
)

// Challenge correlates one login verification attempt with a verified
// factor. A challenge is consumed exactly once, on the first verify call
// referencing it, regardless of the verification outcome.
type Challenge struct {
	ID       uuid.UUID
	FactorID uuid.UUID
	IssuedAt time.Time
	Status   Status
}

// ChallengeRepository defines the persistence contract for challenges.
// ConsumeChallenge must atomically flip open -> consumed so a replayed
// challenge ID cannot be consumed twice.
type ChallengeRepository interface {
	CreateChallenge(ctx context.Context, ch Challenge) error
	ConsumeChallenge(ctx context.Context, id uuid.UUID) (Challenge, error)
	// DeleteExpiredBefore prunes consumed and stale challenges issued
	// before the cutoff. Housekeeping only; expiry is enforced on consume.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
