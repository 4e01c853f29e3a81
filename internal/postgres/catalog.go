package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calloway/stitch/internal/domain"
)

// Catalog implements domain.Catalog against the product_variants table.
type Catalog struct {
	pool *pgxpool.Pool
}

var _ domain.Catalog = (*Catalog)(nil)

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) GetVariant(ctx context.Context, v domain.Variant) (*domain.VariantFact, error) {
	const q = `
SELECT price_cents, orderable, category_id
FROM product_variants
WHERE product_id = $1 AND size = $2 AND color = $3
`
	var fact domain.VariantFact
	err := c.pool.QueryRow(ctx, q, v.ProductID, v.Size, v.Color).Scan(&fact.PriceCents, &fact.Orderable, &fact.CategoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("postgres.catalog.get", "product variant", fmt.Sprintf("%s/%s/%s", v.ProductID, v.Size, v.Color))
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "postgres.catalog.get", "Failed to load product variant")
	}
	return &fact, nil
}
