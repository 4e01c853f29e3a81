package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// PromoStore implements domain.PromoStore using PostgreSQL. Codes are
// stored uppercase; lookup normalizes to uppercase.
type PromoStore struct {
	pool *pgxpool.Pool
}

var _ domain.PromoStore = (*PromoStore)(nil)

func NewPromoStore(pool *pgxpool.Pool) *PromoStore {
	return &PromoStore{pool: pool}
}

func (s *PromoStore) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	const q = `
SELECT code, description, discount_type, discount_value, min_order_cents,
       max_uses, used_count, expires_at, product_ids, category_ids, active
FROM promo_codes
WHERE code = $1
`
	var p domain.PromoCode
	err := s.pool.QueryRow(ctx, q, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&p.Code, &p.Description, &p.DiscountType, &p.DiscountValue, &p.MinOrderCents,
		&p.MaxUses, &p.UsedCount, &p.ExpiresAt, &p.ProductIDs, &p.CategoryIDs, &p.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPromoNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.promo.get", "Failed to load promo code")
	}
	return &p, nil
}

func (s *PromoStore) IncrementUsage(ctx context.Context, code string) error {
	const q = `UPDATE promo_codes SET used_count = used_count + 1 WHERE code = $1`
	if _, err := s.pool.Exec(ctx, q, strings.ToUpper(strings.TrimSpace(code))); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.promo.increment", "Failed to record promo usage")
	}
	return nil
}
