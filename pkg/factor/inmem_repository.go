package factor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemFactorRepository implements FactorRepository using in-memory storage
type InMemFactorRepository struct {
	mu      sync.RWMutex
	factors map[uuid.UUID]MfaFactor
}

// NewInMemFactorRepository creates a new in-memory factor repository
func NewInMemFactorRepository() *InMemFactorRepository {
	return &InMemFactorRepository{
		factors: make(map[uuid.UUID]MfaFactor),
	}
}

// CreateFactor creates a new factor in unverified state
func (r *InMemFactorRepository) CreateFactor(ctx context.Context, params CreateFactorParams) (MfaFactor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	f := MfaFactor{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Secret:      params.Secret,
		Status:      StatusUnverified,
		BackupCodes: append([]string(nil), params.BackupCodes...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.factors[f.ID] = f
	return f, nil
}

// GetFactorByID retrieves a factor by ID
func (r *InMemFactorRepository) GetFactorByID(ctx context.Context, id uuid.UUID) (MfaFactor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factors[id]
	if !ok {
		return MfaFactor{}, ErrFactorNotFound
	}
	return f, nil
}

// FindFactorsByUserID retrieves all factors for a user
func (r *InMemFactorRepository) FindFactorsByUserID(ctx context.Context, userID uuid.UUID) ([]MfaFactor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []MfaFactor
	for _, f := range r.factors {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

// FindFactorByUserIDAndStatus retrieves the user's factor in the given status
func (r *InMemFactorRepository) FindFactorByUserIDAndStatus(ctx context.Context, userID uuid.UUID, status Status) (MfaFactor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.factors {
		if f.UserID == userID && f.Status == status {
			return f, nil
		}
	}
	return MfaFactor{}, ErrFactorNotFound
}

// MarkVerified transitions unverified -> verified with a compare-and-set
func (r *InMemFactorRepository) MarkVerified(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factors[id]
	if !ok {
		return false, ErrFactorNotFound
	}
	if f.Status != StatusUnverified {
		return false, nil
	}
	f.Status = StatusVerified
	f.BackupCodes = nil
	f.UpdatedAt = time.Now().UTC()
	r.factors[id] = f
	return true, nil
}

// DisableFactor transitions any non-disabled state to disabled and
// discards the secret
func (r *InMemFactorRepository) DisableFactor(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factors[id]
	if !ok {
		return false, ErrFactorNotFound
	}
	if f.Status == StatusDisabled {
		return false, nil
	}
	f.Status = StatusDisabled
	f.Secret = ""
	f.BackupCodes = nil
	f.UpdatedAt = time.Now().UTC()
	r.factors[id] = f
	return true, nil
}

// DeleteFactorsByUserIDAndStatus removes the user's factors in the given status
func (r *InMemFactorRepository) DeleteFactorsByUserIDAndStatus(ctx context.Context, userID uuid.UUID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, f := range r.factors {
		if f.UserID == userID && f.Status == status {
			delete(r.factors, id)
		}
	}
	return nil
}
