// Package tax computes the tax line for an order.
package tax

import "context"

// Calculator computes tax in cents on a taxable amount. Implementations:
// PercentageCalculator, NoTaxCalculator.
type Calculator interface {
	CalculateCents(ctx context.Context, taxableAmountCents int64) (int64, error)
}
