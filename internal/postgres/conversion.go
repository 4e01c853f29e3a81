package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// ConversionStore implements domain.ConversionStore using PostgreSQL. The
// guest token is the primary key, so concurrent Begins for the same guest
// land on a single row.
type ConversionStore struct {
	pool *pgxpool.Pool
}

var _ domain.ConversionStore = (*ConversionStore)(nil)

func NewConversionStore(pool *pgxpool.Pool) *ConversionStore {
	return &ConversionStore{pool: pool}
}

const conversionColumns = `guest_token::text, user_id::text, status, orders_linked, cart_merged, dropped_lines, created_at, updated_at`

func (s *ConversionStore) Begin(ctx context.Context, guestToken, userID string) (*domain.ConversionState, error) {
	// The no-op conflict update lets RETURNING report the existing row.
	const q = `
INSERT INTO guest_conversions (guest_token, user_id)
VALUES ($1, $2)
ON CONFLICT (guest_token) DO UPDATE SET guest_token = EXCLUDED.guest_token
RETURNING ` + conversionColumns
	var st domain.ConversionState
	err := s.pool.QueryRow(ctx, q, guestToken, userID).Scan(
		&st.GuestToken, &st.UserID, &st.Status, &st.OrdersLinked, &st.CartMerged, &st.DroppedLines, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.begin", "Failed to begin conversion")
	}
	return &st, nil
}

func (s *ConversionStore) Get(ctx context.Context, guestToken string) (*domain.ConversionState, error) {
	const q = `SELECT ` + conversionColumns + ` FROM guest_conversions WHERE guest_token = $1`
	var st domain.ConversionState
	err := s.pool.QueryRow(ctx, q, guestToken).Scan(
		&st.GuestToken, &st.UserID, &st.Status, &st.OrdersLinked, &st.CartMerged, &st.DroppedLines, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("postgres.conversion.get", "conversion", guestToken)
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.get", "Failed to load conversion")
	}
	return &st, nil
}

func (s *ConversionStore) SetOrdersLinked(ctx context.Context, guestToken string, n int32) error {
	const q = `
UPDATE guest_conversions
SET status = $2, orders_linked = $3, updated_at = now()
WHERE guest_token = $1 AND status = $4
`
	if _, err := s.pool.Exec(ctx, q, guestToken, domain.ConversionOrdersLinked, n, domain.ConversionPending); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.checkpoint", "Failed to record linked orders")
	}
	return nil
}

func (s *ConversionStore) Complete(ctx context.Context, guestToken string, cartMerged bool, dropped int32) error {
	const q = `
UPDATE guest_conversions
SET status = $2, cart_merged = $3, dropped_lines = $4, updated_at = now()
WHERE guest_token = $1 AND status <> $2
`
	if _, err := s.pool.Exec(ctx, q, guestToken, domain.ConversionCompleted, cartMerged, dropped); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.complete", "Failed to complete conversion")
	}
	return nil
}

func (s *ConversionStore) ListIncompleteForUser(ctx context.Context, userID string) ([]domain.ConversionState, error) {
	const q = `
SELECT ` + conversionColumns + `
FROM guest_conversions
WHERE user_id = $1 AND status <> $2
ORDER BY created_at
`
	rows, err := s.pool.Query(ctx, q, userID, domain.ConversionCompleted)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.list", "Failed to list conversions")
	}
	defer rows.Close()

	var out []domain.ConversionState
	for rows.Next() {
		var st domain.ConversionState
		if err := rows.Scan(&st.GuestToken, &st.UserID, &st.Status, &st.OrdersLinked, &st.CartMerged, &st.DroppedLines, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.list", "Failed to scan conversion")
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *ConversionStore) ListStale(ctx context.Context, updatedBefore time.Time, limit int32) ([]domain.ConversionState, error) {
	const q = `
SELECT ` + conversionColumns + `
FROM guest_conversions
WHERE status <> $1 AND updated_at < $2
ORDER BY updated_at
LIMIT $3
`
	rows, err := s.pool.Query(ctx, q, domain.ConversionCompleted, updatedBefore, limit)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.stale", "Failed to list stale conversions")
	}
	defer rows.Close()

	var out []domain.ConversionState
	for rows.Next() {
		var st domain.ConversionState
		if err := rows.Scan(&st.GuestToken, &st.UserID, &st.Status, &st.OrdersLinked, &st.CartMerged, &st.DroppedLines, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.conversion.stale", "Failed to scan conversion")
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
