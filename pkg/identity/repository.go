package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// User is the identity record. The password field holds a bcrypt hash,
// never the plaintext credential.
type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	CreatedAt time.Time
}

// CreateUserParams represents parameters for creating a user
type CreateUserParams struct {
	Email    string
	Password string // already hashed
}

// UserRepository defines the persistence contract for identity records.
type UserRepository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
}
