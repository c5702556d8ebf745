package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL-based user repository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const createUserSQL = `
INSERT INTO app_user (id, email, password, created_at)
VALUES ($1, $2, $3, now())
RETURNING id, email, password, created_at
`

// CreateUser creates a new user record
func (r *PostgresUserRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, createUserSQL, uuid.New(), strings.ToLower(params.Email), params.Password))
}

const getUserByIDSQL = `
SELECT id, email, password, created_at
FROM app_user
WHERE id = $1
`

// GetUserByID retrieves a user by ID
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, getUserByIDSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

const findUserByEmailSQL = `
SELECT id, email, password, created_at
FROM app_user
WHERE email = $1
`

// FindUserByEmail retrieves a user by email
func (r *PostgresUserRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, findUserByEmailSQL, strings.ToLower(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}
