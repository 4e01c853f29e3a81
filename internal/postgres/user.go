package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ domain.UserStore = (*UserStore)(nil)

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id::text, email, password_hash, first_name, last_name, created_at`

func (s *UserStore) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*domain.User, error) {
	const q = `
INSERT INTO users (email, password_hash, first_name, last_name)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns
	var u domain.User
	err := s.pool.QueryRow(ctx, q, email, passwordHash, firstName, lastName).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.user.create", "Failed to create user")
	}
	return &u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return s.getUser(ctx, q, email)
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getUser(ctx, q, id)
}

func (s *UserStore) getUser(ctx context.Context, q string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.user.get", "Failed to load user")
	}
	return &u, nil
}
