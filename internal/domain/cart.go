package domain

import (
	"context"
	"time"
)

// Cart domain errors.
var (
	ErrCartNotFound       = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartLineNotFound   = &Error{Code: ENOTFOUND, Message: "Cart line not found"}
	ErrInvalidQuantity    = &Error{Code: EINVALID, Message: "Quantity must be at least 1"}
	ErrVariantUnavailable = &Error{Code: EINVALID, Message: "This product variant is not currently available"}
)

// Variant identifies a purchasable product variant. It is the uniqueness
// key for cart lines: a second add of the same key increments quantity
// instead of duplicating the line.
type Variant struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// CartLine is a single line in a cart. PriceAtAddCents is snapshotted from
// the catalog at the time of the first add and never recomputed afterwards;
// price fluctuations must not silently change what is in the cart.
type CartLine struct {
	Variant
	Quantity        int32     `json:"quantity"`
	PriceAtAddCents int64     `json:"priceAtAdd"`
	AddedAt         time.Time `json:"addedAt"`
}

// LineSubtotalCents returns the derived line total.
func (l CartLine) LineSubtotalCents() int64 {
	return l.PriceAtAddCents * int64(l.Quantity)
}

// CartSnapshot is the full server-authoritative view of a cart returned
// from every read and write. ItemCount and SubtotalCents are always
// recomputed from line data; callers must never derive them from stale
// client state. Saved lines are excluded from both.
type CartSnapshot struct {
	Owner         Identity   `json:"-"`
	Lines         []CartLine `json:"items"`
	Saved         []CartLine `json:"savedForLater"`
	ItemCount     int32      `json:"itemCount"`
	SubtotalCents int64      `json:"subtotal"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Recompute refreshes the derived totals from line data.
func (s *CartSnapshot) Recompute() {
	s.ItemCount = 0
	s.SubtotalCents = 0
	for _, l := range s.Lines {
		s.ItemCount += l.Quantity
		s.SubtotalCents += l.LineSubtotalCents()
	}
}

// CartService owns the mutable line collections for a single identity.
// All write operations return the recomputed snapshot.
type CartService interface {
	// GetCart fetches the cart for the identity, lazily creating an empty
	// one on first access.
	GetCart(ctx context.Context, owner Identity) (*CartSnapshot, error)

	// AddItem adds quantity of a variant. If a line with the same
	// (productId, size, color) key exists, the quantity is incremented
	// atomically and the original priceAtAdd is kept. The variant must be
	// orderable per the catalog or the call fails with ErrVariantUnavailable.
	AddItem(ctx context.Context, owner Identity, v Variant, quantity int32) (*CartSnapshot, error)

	// UpdateItem sets the quantity of an existing line directly.
	// Quantity below 1 fails with ErrInvalidQuantity; callers should use
	// RemoveItem instead. A missing line fails with ErrCartLineNotFound.
	UpdateItem(ctx context.Context, owner Identity, v Variant, quantity int32) (*CartSnapshot, error)

	// RemoveItem removes a line. Removing a non-existent line is a
	// success no-op.
	RemoveItem(ctx context.Context, owner Identity, v Variant) (*CartSnapshot, error)

	// ClearCart empties both the active and saved-for-later collections.
	ClearCart(ctx context.Context, owner Identity) (*CartSnapshot, error)

	// SaveForLater atomically moves a line from the active list to the
	// saved list. A missing line fails with ErrCartLineNotFound.
	SaveForLater(ctx context.Context, owner Identity, v Variant) (*CartSnapshot, error)

	// MoveToCart is the inverse of SaveForLater. If an equivalent line
	// already exists in the active list, quantities are merged.
	MoveToCart(ctx context.Context, owner Identity, v Variant) (*CartSnapshot, error)
}

// CartStore persists cart lines keyed by owner. Implementations must make
// AddLine's increment atomic relative to the line's current quantity so
// interleaved adds never lose an increment, and MoveLine's list switch a
// single write.
type CartStore interface {
	// GetLines returns active and saved lines for the owner, with the
	// cart's last update time. A missing cart yields empty slices.
	GetLines(ctx context.Context, owner Identity) (lines, saved []CartLine, updatedAt time.Time, err error)

	// AddLine inserts a line or atomically increments the quantity of an
	// existing line with the same variant key. priceCents applies only on
	// insert; an existing line keeps its original price.
	AddLine(ctx context.Context, owner Identity, v Variant, quantity int32, priceCents int64) error

	// SetQuantity overwrites the quantity of an existing active line
	// (last-write-wins). Returns false if no such line exists.
	SetQuantity(ctx context.Context, owner Identity, v Variant, quantity int32) (bool, error)

	// RemoveLine deletes an active line if present.
	RemoveLine(ctx context.Context, owner Identity, v Variant) error

	// Clear deletes all lines, active and saved.
	Clear(ctx context.Context, owner Identity) error

	// MoveLine moves a line between the active and saved lists in one
	// write, merging quantities when the destination already holds the
	// same variant key. Returns false if the source line does not exist.
	MoveLine(ctx context.Context, owner Identity, v Variant, toSaved bool) (bool, error)

	// MergeLines moves every line owned by from into to's cart in a single
	// transaction, merging quantities on matching variant keys and keeping
	// to's priceAtAdd on merged lines. Lines whose variant is no longer
	// orderable are dropped and counted, not moved. The from cart is left
	// empty. Running it against an already-empty from cart is a no-op.
	MergeLines(ctx context.Context, from, to Identity) (moved, dropped int32, err error)
}
