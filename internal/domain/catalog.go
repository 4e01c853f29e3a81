package domain

import "context"

// VariantFact is what the catalog reports about a purchasable variant.
// CategoryID is carried for promo-code scoping.
type VariantFact struct {
	PriceCents int64
	Orderable  bool
	CategoryID string
}

// Catalog is the external catalog collaborator. The checkout core only
// needs current price and orderability; catalog browsing, search, and
// stock algorithms live elsewhere.
type Catalog interface {
	GetVariant(ctx context.Context, v Variant) (*VariantFact, error)
}
