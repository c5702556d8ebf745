package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemChallengeRepository implements ChallengeRepository using in-memory storage
type InMemChallengeRepository struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]Challenge
}

// NewInMemChallengeRepository creates a new in-memory challenge repository
func NewInMemChallengeRepository() *InMemChallengeRepository {
	return &InMemChallengeRepository{
		challenges: make(map[uuid.UUID]Challenge),
	}
}

// CreateChallenge stores a new open challenge
func (r *InMemChallengeRepository) CreateChallenge(ctx context.Context, ch Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[ch.ID] = ch
	return nil
}

// ConsumeChallenge atomically flips open -> consumed
func (r *InMemChallengeRepository) ConsumeChallenge(ctx context.Context, id uuid.UUID) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.challenges[id]
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	if ch.Status != StatusOpen {
		return Challenge{}, ErrChallengeAlreadyConsumed
	}
	ch.Status = StatusConsumed
	r.challenges[id] = ch
	return ch, nil
}

// DeleteExpiredBefore prunes challenges issued before the cutoff
func (r *InMemChallengeRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, ch := range r.challenges {
		if ch.IssuedAt.Before(cutoff) {
			delete(r.challenges, id)
			n++
		}
	}
	return n, nil
}
