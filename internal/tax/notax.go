package tax

import "context"

// NoTaxCalculator always returns zero tax. Used for jurisdictions where
// tax is collected outside the storefront.
type NoTaxCalculator struct{}

var _ Calculator = (*NoTaxCalculator)(nil)

func NewNoTaxCalculator() *NoTaxCalculator {
	return &NoTaxCalculator{}
}

func (c *NoTaxCalculator) CalculateCents(ctx context.Context, taxableAmountCents int64) (int64, error) {
	return 0, nil
}
