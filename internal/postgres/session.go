package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

var _ domain.SessionStore = (*SessionStore)(nil)

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) CreateGuestSession(ctx context.Context, token string, expiresAt time.Time) (*domain.GuestSession, error) {
	const q = `
INSERT INTO guest_sessions (token, expires_at)
VALUES ($1, $2)
RETURNING token::text, expires_at, converted_at, COALESCE(converted_user_id::text, ''), created_at
`
	var sess domain.GuestSession
	err := s.pool.QueryRow(ctx, q, token, expiresAt).Scan(
		&sess.Token, &sess.ExpiresAt, &sess.ConvertedAt, &sess.ConvertedUserID, &sess.CreatedAt,
	)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.session.create", "Failed to create guest session")
	}
	return &sess, nil
}

func (s *SessionStore) GetGuestSession(ctx context.Context, token string) (*domain.GuestSession, error) {
	const q = `
SELECT token::text, expires_at, converted_at, COALESCE(converted_user_id::text, ''), created_at
FROM guest_sessions
WHERE token = $1
`
	var sess domain.GuestSession
	err := s.pool.QueryRow(ctx, q, token).Scan(
		&sess.Token, &sess.ExpiresAt, &sess.ConvertedAt, &sess.ConvertedUserID, &sess.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.session.get", "Failed to load guest session")
	}
	return &sess, nil
}

func (s *SessionStore) MarkConverted(ctx context.Context, token, userID string) error {
	const q = `
UPDATE guest_sessions
SET converted_at = now(), converted_user_id = $2
WHERE token = $1 AND converted_at IS NULL
`
	tag, err := s.pool.Exec(ctx, q, token, userID)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.session.convert", "Failed to mark session converted")
	}
	if tag.RowsAffected() == 0 {
		// Already converted or missing; conversion retries hit this path.
		return nil
	}
	return nil
}

func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	// Conversion checkpoints reference sessions, so converted sessions are
	// kept; their cart and orders have already moved on.
	const q = `
DELETE FROM guest_sessions
WHERE expires_at < $1
  AND converted_at IS NULL
  AND NOT EXISTS (SELECT 1 FROM guest_conversions c WHERE c.guest_token = guest_sessions.token)
`
	tag, err := s.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, "postgres.session.cleanup", "Failed to delete expired sessions")
	}
	return tag.RowsAffected(), nil
}
