package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// CartStore implements domain.CartStore using PostgreSQL. Cart lines are
// keyed (owner, variant, saved); the commutative add and the list moves
// are single statements so interleaved writers never lose an increment.
type CartStore struct {
	pool *pgxpool.Pool
}

var _ domain.CartStore = (*CartStore)(nil)

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) GetLines(ctx context.Context, owner domain.Identity) (lines, saved []domain.CartLine, updatedAt time.Time, err error) {
	const q = `
SELECT product_id, size, color, saved, quantity, price_at_add_cents, added_at, updated_at
FROM cart_items
WHERE owner_kind = $1 AND owner_id = $2
ORDER BY added_at, product_id, size, color
`
	rows, err := s.pool.Query(ctx, q, owner.Kind, owner.ID)
	if err != nil {
		return nil, nil, time.Time{}, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.get", "Failed to load cart")
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.CartLine
		var isSaved bool
		var lineUpdated time.Time
		if err := rows.Scan(&l.ProductID, &l.Size, &l.Color, &isSaved, &l.Quantity, &l.PriceAtAddCents, &l.AddedAt, &lineUpdated); err != nil {
			return nil, nil, time.Time{}, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.get", "Failed to scan cart line")
		}
		if lineUpdated.After(updatedAt) {
			updatedAt = lineUpdated
		}
		if isSaved {
			saved = append(saved, l)
		} else {
			lines = append(lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, time.Time{}, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.get", "Failed to read cart lines")
	}
	return lines, saved, updatedAt, nil
}

func (s *CartStore) AddLine(ctx context.Context, owner domain.Identity, v domain.Variant, quantity int32, priceCents int64) error {
	// The conflict arm deliberately leaves price_at_add_cents alone: the
	// snapshot taken at the first add survives later adds.
	const q = `
INSERT INTO cart_items (owner_kind, owner_id, product_id, size, color, saved, quantity, price_at_add_cents)
VALUES ($1, $2, $3, $4, $5, false, $6, $7)
ON CONFLICT (owner_kind, owner_id, product_id, size, color, saved)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
`
	_, err := s.pool.Exec(ctx, q, owner.Kind, owner.ID, v.ProductID, v.Size, v.Color, quantity, priceCents)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.cart.add", "Failed to add cart line")
	}
	return nil
}

func (s *CartStore) SetQuantity(ctx context.Context, owner domain.Identity, v domain.Variant, quantity int32) (bool, error) {
	const q = `
UPDATE cart_items
SET quantity = $6, updated_at = now()
WHERE owner_kind = $1 AND owner_id = $2 AND product_id = $3 AND size = $4 AND color = $5 AND saved = false
`
	tag, err := s.pool.Exec(ctx, q, owner.Kind, owner.ID, v.ProductID, v.Size, v.Color, quantity)
	if err != nil {
		return false, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.update", "Failed to update cart line")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CartStore) RemoveLine(ctx context.Context, owner domain.Identity, v domain.Variant) error {
	const q = `
DELETE FROM cart_items
WHERE owner_kind = $1 AND owner_id = $2 AND product_id = $3 AND size = $4 AND color = $5 AND saved = false
`
	if _, err := s.pool.Exec(ctx, q, owner.Kind, owner.ID, v.ProductID, v.Size, v.Color); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.cart.remove", "Failed to remove cart line")
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, owner domain.Identity) error {
	const q = `DELETE FROM cart_items WHERE owner_kind = $1 AND owner_id = $2`
	if _, err := s.pool.Exec(ctx, q, owner.Kind, owner.ID); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.cart.clear", "Failed to clear cart")
	}
	return nil
}

func (s *CartStore) MoveLine(ctx context.Context, owner domain.Identity, v domain.Variant, toSaved bool) (bool, error) {
	// Delete-and-reinsert in one statement keeps the move atomic; the
	// conflict arm merges quantities when the destination list already
	// holds the variant.
	const q = `
WITH src AS (
    DELETE FROM cart_items
    WHERE owner_kind = $1 AND owner_id = $2 AND product_id = $3 AND size = $4 AND color = $5 AND saved = $6
    RETURNING quantity, price_at_add_cents, added_at
)
INSERT INTO cart_items (owner_kind, owner_id, product_id, size, color, saved, quantity, price_at_add_cents, added_at)
SELECT $1, $2, $3, $4, $5, $7, quantity, price_at_add_cents, added_at FROM src
ON CONFLICT (owner_kind, owner_id, product_id, size, color, saved)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
`
	tag, err := s.pool.Exec(ctx, q, owner.Kind, owner.ID, v.ProductID, v.Size, v.Color, !toSaved, toSaved)
	if err != nil {
		return false, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.move", "Failed to move cart line")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CartStore) MergeLines(ctx context.Context, from, to domain.Identity) (moved, dropped int32, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.merge", "Failed to begin merge")
	}
	defer tx.Rollback(ctx)

	var total int32
	const countQ = `SELECT count(*) FROM cart_items WHERE owner_kind = $1 AND owner_id = $2`
	if err := tx.QueryRow(ctx, countQ, from.Kind, from.ID).Scan(&total); err != nil {
		return 0, 0, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.merge", "Failed to count source lines")
	}
	if total == 0 {
		return 0, 0, nil
	}

	// Move lines whose variant is still orderable; everything else is
	// deleted with the source cart and counted as dropped.
	const moveQ = `
WITH src AS (
    DELETE FROM cart_items
    WHERE owner_kind = $1 AND owner_id = $2
    RETURNING product_id, size, color, saved, quantity, price_at_add_cents, added_at
)
INSERT INTO cart_items (owner_kind, owner_id, product_id, size, color, saved, quantity, price_at_add_cents, added_at)
SELECT $3, $4, product_id, size, color, saved, quantity, price_at_add_cents, added_at
FROM src
WHERE EXISTS (
    SELECT 1 FROM product_variants pv
    WHERE pv.product_id = src.product_id AND pv.size = src.size AND pv.color = src.color AND pv.orderable
)
ON CONFLICT (owner_kind, owner_id, product_id, size, color, saved)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
`
	tag, err := tx.Exec(ctx, moveQ, from.Kind, from.ID, to.Kind, to.ID)
	if err != nil {
		return 0, 0, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.merge", "Failed to merge cart lines")
	}
	moved = int32(tag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, domain.WrapError(err, domain.EINTERNAL, "postgres.cart.merge", "Failed to commit merge")
	}
	return moved, total - moved, nil
}
