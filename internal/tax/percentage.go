package tax

import (
	"context"
	"math"
)

// PercentageCalculator applies a single flat rate, rounding half away
// from zero to whole cents.
type PercentageCalculator struct {
	rate float64
}

var _ Calculator = (*PercentageCalculator)(nil)

// NewPercentageCalculator creates a percentage-based tax calculator.
// rate is a fraction, e.g. 0.18 for 18%.
func NewPercentageCalculator(rate float64) *PercentageCalculator {
	return &PercentageCalculator{rate: rate}
}

func (c *PercentageCalculator) CalculateCents(ctx context.Context, taxableAmountCents int64) (int64, error) {
	if taxableAmountCents <= 0 || c.rate <= 0 {
		return 0, nil
	}
	return int64(math.Round(float64(taxableAmountCents) * c.rate)), nil
}
