package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Order creation,
// the cart clear, and the promo usage bump share one transaction; the
// partial unique index on payment_intent_id rejects replayed gateway
// callbacks at the database.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderStore = (*OrderStore)(nil)

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
id::text, order_number, owner_kind, owner_id, status, payment_method,
COALESCE(payment_intent_id, ''), COALESCE(promo_code, ''),
subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents, currency,
ship_full_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country, ship_phone,
created_at`

func (s *OrderStore) CreateOrder(ctx context.Context, o *domain.Order, clearCartOf *domain.Identity) (*domain.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.create", "Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var intentID *string
	if o.PaymentIntentID != "" {
		intentID = &o.PaymentIntentID
	}
	var promoCode *string
	if o.PromoCode != "" {
		promoCode = &o.PromoCode
	}

	const insertQ = `
INSERT INTO orders (
    order_number, owner_kind, owner_id, status, payment_method, payment_intent_id, promo_code,
    subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents, currency,
    ship_full_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country, ship_phone
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
RETURNING id::text, created_at
`
	created := *o
	err = tx.QueryRow(ctx, insertQ,
		o.OrderNumber, o.OwnerKind, o.OwnerID, o.Status, o.PaymentMethod, intentID, promoCode,
		o.Totals.SubtotalCents, o.Totals.DiscountCents, o.Totals.ShippingCents, o.Totals.TaxCents, o.Totals.TotalCents, o.Currency,
		o.ShippingAddress.FullName, o.ShippingAddress.AddressLine1, o.ShippingAddress.AddressLine2,
		o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.PostalCode,
		o.ShippingAddress.Country, o.ShippingAddress.Phone,
	).Scan(&created.ID, &created.CreatedAt)
	if isUniqueViolation(err) {
		return nil, domain.ErrPaymentAlreadyProcessed
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.create", "Failed to insert order")
	}

	const itemQ = `
INSERT INTO order_items (order_id, product_id, size, color, quantity, unit_price_cents, total_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, itemQ, created.ID, it.ProductID, it.Size, it.Color, it.Quantity, it.UnitPriceCents, it.TotalCents); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.create", "Failed to insert order item")
		}
	}

	if clearCartOf != nil {
		const clearQ = `DELETE FROM cart_items WHERE owner_kind = $1 AND owner_id = $2 AND saved = false`
		if _, err := tx.Exec(ctx, clearQ, clearCartOf.Kind, clearCartOf.ID); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.create", "Failed to clear cart")
		}
	}

	if o.PromoCode != "" {
		const promoQ = `UPDATE promo_codes SET used_count = used_count + 1 WHERE code = $1`
		if _, err := tx.Exec(ctx, promoQ, o.PromoCode); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.create", "Failed to record promo usage")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.create", "Failed to commit order")
	}
	return &created, nil
}

func (s *OrderStore) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (s *OrderStore) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (s *OrderStore) GetOrderByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, intentID)
}

func (s *OrderStore) ListOrdersByOwner(ctx context.Context, owner domain.Identity) ([]domain.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE owner_kind = $1 AND owner_id = $2 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, owner.Kind, owner.ID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.list", "Failed to list orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.list", "Failed to read orders")
	}
	for i := range orders {
		if err := s.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderStore) ReassignOwner(ctx context.Context, from, to domain.Identity) (int64, error) {
	// Only rows still owned by from move; a retried conversion finds
	// nothing left to touch.
	const q = `
UPDATE orders
SET owner_kind = $3, owner_id = $4
WHERE owner_kind = $1 AND owner_id = $2
`
	tag, err := s.pool.Exec(ctx, q, from.Kind, from.ID, to.Kind, to.ID)
	if err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, "postgres.order.reassign", "Failed to reassign orders")
	}
	return tag.RowsAffected(), nil
}

func (s *OrderStore) getOrder(ctx context.Context, q string, arg any) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, q, arg)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderStore) loadItems(ctx context.Context, o *domain.Order) error {
	const q = `
SELECT product_id, size, color, quantity, unit_price_cents, total_cents
FROM order_items
WHERE order_id = $1
ORDER BY product_id, size, color
`
	rows, err := s.pool.Query(ctx, q, o.ID)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "postgres.order.items", "Failed to load order items")
	}
	defer rows.Close()

	o.Items = nil
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Size, &it.Color, &it.Quantity, &it.UnitPriceCents, &it.TotalCents); err != nil {
			return domain.WrapError(err, domain.EINTERNAL, "postgres.order.items", "Failed to scan order item")
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.OwnerKind, &o.OwnerID, &o.Status, &o.PaymentMethod,
		&o.PaymentIntentID, &o.PromoCode,
		&o.Totals.SubtotalCents, &o.Totals.DiscountCents, &o.Totals.ShippingCents, &o.Totals.TaxCents, &o.Totals.TotalCents, &o.Currency,
		&o.ShippingAddress.FullName, &o.ShippingAddress.AddressLine1, &o.ShippingAddress.AddressLine2,
		&o.ShippingAddress.City, &o.ShippingAddress.State, &o.ShippingAddress.PostalCode,
		&o.ShippingAddress.Country, &o.ShippingAddress.Phone,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.order.scan", "Failed to scan order")
	}
	return &o, nil
}
