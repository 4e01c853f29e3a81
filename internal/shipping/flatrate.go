package shipping

import "context"

// FlatRateQuoter charges a flat fee below a free-shipping threshold and
// nothing at or above it.
type FlatRateQuoter struct {
	freeThresholdCents int64
	flatFeeCents       int64
}

var _ Quoter = (*FlatRateQuoter)(nil)

// NewFlatRateQuoter creates a threshold flat-rate quoter. A zero or
// negative threshold means shipping is always free.
func NewFlatRateQuoter(freeThresholdCents, flatFeeCents int64) *FlatRateQuoter {
	return &FlatRateQuoter{
		freeThresholdCents: freeThresholdCents,
		flatFeeCents:       flatFeeCents,
	}
}

func (q *FlatRateQuoter) QuoteCents(ctx context.Context, orderAmountCents int64) (int64, error) {
	if q.freeThresholdCents <= 0 {
		return 0, nil
	}
	if orderAmountCents >= q.freeThresholdCents {
		return 0, nil
	}
	return q.flatFeeCents, nil
}
