package backupcode

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/drfintrack/fintrack-auth/pkg/errors"
)

// CodeStore is the persistence contract for a user's unconsumed backup
// codes. ConsumeCode must be atomic: two concurrent submissions of the
// same code must not both succeed.
type CodeStore interface {
	GetBackupCodes(ctx context.Context, userID uuid.UUID) ([]string, error)
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

// Service validates and consumes backup codes against a CodeStore.
type Service struct {
	store CodeStore
}

// NewService creates a new backup code service
func NewService(store CodeStore) *Service {
	return &Service{store: store}
}

// Consume matches the submitted code against the user's unconsumed set
// and marks it used on success. Returns false when nothing matches; a
// consumed code never validates again. The candidate scan always walks
// the full set so timing does not reveal which codes remain.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, submitted string) (bool, error) {
	codes, err := s.store.GetBackupCodes(ctx, userID)
	if err != nil {
		slog.Error("Failed to load backup codes", "userID", userID, "error", err)
		return false, errors.UpstreamUnavailable(err, "failed to load backup codes")
	}

	normalized := Normalize(submitted)
	if normalized == "" {
		return false, nil
	}

	var matched string
	found := false
	for _, c := range codes {
		if Match(c, normalized) && !found {
			matched = c
			found = true
		}
	}
	if !found {
		return false, nil
	}

	consumed, err := s.store.ConsumeBackupCode(ctx, userID, matched)
	if err != nil {
		slog.Error("Failed to consume backup code", "userID", userID, "error", err)
		return false, errors.UpstreamUnavailable(err, "failed to consume backup code")
	}
	return consumed, nil
}
