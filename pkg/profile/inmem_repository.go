package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemProfileRepository implements ProfileRepository using in-memory storage
type InMemProfileRepository struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]Profile
}

// NewInMemProfileRepository creates a new in-memory profile repository
func NewInMemProfileRepository() *InMemProfileRepository {
	return &InMemProfileRepository{
		profiles: make(map[uuid.UUID]Profile),
	}
}

// GetProfile retrieves a user's profile
func (r *InMemProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	out := p
	out.BackupCodes = append([]string(nil), p.BackupCodes...)
	return out, nil
}

// SetTwoFactorEnabled upserts the enabled flag and backup code set
func (r *InMemProfileRepository) SetTwoFactorEnabled(ctx context.Context, userID uuid.UUID, enabled bool, backupCodes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles[userID] = Profile{
		UserID:           userID,
		TwoFactorEnabled: enabled,
		BackupCodes:      append([]string(nil), backupCodes...),
		UpdatedAt:        time.Now().UTC(),
	}
	return nil
}

// GetBackupCodes returns the user's unconsumed backup codes
func (r *InMemProfileRepository) GetBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(p.BackupCodes))
	copy(out, p.BackupCodes)
	return out, nil
}

// ConsumeBackupCode atomically removes one code from the set
func (r *InMemProfileRepository) ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return false, nil
	}
	for i, c := range p.BackupCodes {
		if c == code {
			p.BackupCodes = append(p.BackupCodes[:i], p.BackupCodes[i+1:]...)
			p.UpdatedAt = time.Now().UTC()
			r.profiles[userID] = p
			return true, nil
		}
	}
	return false, nil
}
