// Package shipping quotes delivery charges for an order.
package shipping

import "context"

// Quoter computes the shipping charge for an order amount. The order
// amount is the discounted merchandise subtotal in cents.
type Quoter interface {
	QuoteCents(ctx context.Context, orderAmountCents int64) (int64, error)
}
