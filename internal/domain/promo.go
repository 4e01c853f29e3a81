package domain

import (
	"context"
	"fmt"
	"time"
)

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// PromoCode is a stored promotion definition. Codes are stored uppercase;
// lookup is case-insensitive.
type PromoCode struct {
	Code          string
	Description   string
	DiscountType  string // percentage | fixed
	DiscountValue int64  // percent for percentage codes, cents for fixed codes
	MinOrderCents int64
	MaxUses       int32 // 0 = unlimited
	UsedCount     int32
	ExpiresAt     *time.Time
	ProductIDs    []string // non-empty scopes the code to these products
	CategoryIDs   []string // non-empty scopes the code to these categories
	Active        bool
}

// PromoApplication is the priced result of validating a code against a
// cart snapshot. It is never persisted on the cart; it lives in
// checkout-session scope only and must be re-validated at order placement.
type PromoApplication struct {
	Code           string `json:"promoCode"`
	DiscountCents  int64  `json:"discountAmount"`
	DiscountType   string `json:"discountType"`
	Description    string `json:"description"`
}

// PromoLineItem is the cart shape the evaluator scopes codes against.
type PromoLineItem struct {
	ProductID  string `json:"productId"`
	CategoryID string `json:"categoryId"`
	Quantity   int32  `json:"quantity"`
}

// Promo errors.
var (
	ErrPromoNotFound  = &Error{Code: ENOTFOUND, Message: "Invalid promo code"}
	ErrPromoExpired   = &Error{Code: EINVALID, Message: "This promo code has expired"}
	ErrPromoExhausted = &Error{Code: EINVALID, Message: "This promo code has reached its usage limit"}
	ErrPromoNotInScope = &Error{Code: EINVALID, Message: "This promo code does not apply to the items in your cart"}
)

// PromoMinOrderError reports an order amount below a code's configured
// minimum. It carries the minimum so callers can display it.
type PromoMinOrderError struct {
	MinOrderCents int64
}

func (e *PromoMinOrderError) Error() string {
	return fmt.Sprintf("order amount below the promo minimum of %d", e.MinOrderCents)
}

// PromoService validates and prices a promo code against a cart snapshot.
// Validation is a pure function of the code definition, the order amount,
// and the line items; it has no side effects.
type PromoService interface {
	Validate(ctx context.Context, code string, orderAmountCents int64, items []PromoLineItem) (*PromoApplication, error)
}

// PromoStore persists promo code definitions.
type PromoStore interface {
	// GetByCode looks up a code. Callers pass the code as entered; the
	// store normalizes to uppercase.
	GetByCode(ctx context.Context, code string) (*PromoCode, error)

	// IncrementUsage bumps the usage counter after successful order
	// placement with the code applied.
	IncrementUsage(ctx context.Context, code string) error
}
