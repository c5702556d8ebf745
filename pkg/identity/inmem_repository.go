package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemUserRepository implements UserRepository using in-memory storage
type InMemUserRepository struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]User
	usersByEmail map[string]uuid.UUID
}

// NewInMemUserRepository creates a new in-memory user repository
func NewInMemUserRepository() *InMemUserRepository {
	return &InMemUserRepository{
		users:        make(map[uuid.UUID]User),
		usersByEmail: make(map[string]uuid.UUID),
	}
}

// CreateUser creates a new user record
func (r *InMemUserRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := User{
		ID:        uuid.New(),
		Email:     strings.ToLower(params.Email),
		Password:  params.Password,
		CreatedAt: time.Now().UTC(),
	}
	r.users[u.ID] = u
	r.usersByEmail[u.Email] = u.ID
	return u, nil
}

// GetUserByID retrieves a user by ID
func (r *InMemUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// FindUserByEmail retrieves a user by email
func (r *InMemUserRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.users[id], nil
}
