package service

import (
	"context"
	"math"
	"time"

	"github.com/calloway/stitch/internal/domain"
)

// PromoService implements domain.PromoService. Validation is stateless:
// it reads the code definition and prices the discount without recording
// anything. Usage is only counted when an order is placed with the code.
type PromoService struct {
	store domain.PromoStore
	now   func() time.Time
}

var _ domain.PromoService = (*PromoService)(nil)

func NewPromoService(store domain.PromoStore) *PromoService {
	return &PromoService{store: store, now: time.Now}
}

func (s *PromoService) Validate(ctx context.Context, code string, orderAmountCents int64, items []domain.PromoLineItem) (*domain.PromoApplication, error) {
	promo, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !promo.Active {
		return nil, domain.ErrPromoNotFound
	}

	if promo.ExpiresAt != nil && s.now().After(*promo.ExpiresAt) {
		return nil, domain.ErrPromoExpired
	}
	if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
		return nil, domain.ErrPromoExhausted
	}
	if promo.MinOrderCents > 0 && orderAmountCents < promo.MinOrderCents {
		return nil, &domain.PromoMinOrderError{MinOrderCents: promo.MinOrderCents}
	}
	if !inScope(promo, items) {
		return nil, domain.ErrPromoNotInScope
	}

	var discount int64
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		discount = int64(math.Round(float64(orderAmountCents) * float64(promo.DiscountValue) / 100))
	case domain.DiscountFixed:
		discount = promo.DiscountValue
	default:
		return nil, domain.Errorf(domain.EINTERNAL, "promo.validate", "unknown discount type: %s", promo.DiscountType)
	}
	// A discount can never exceed what is being paid.
	if discount > orderAmountCents {
		discount = orderAmountCents
	}
	if discount < 0 {
		discount = 0
	}

	return &domain.PromoApplication{
		Code:          promo.Code,
		DiscountCents: discount,
		DiscountType:  promo.DiscountType,
		Description:   promo.Description,
	}, nil
}

// inScope reports whether the cart holds at least one item the code
// applies to. An unscoped code applies to everything.
func inScope(promo *domain.PromoCode, items []domain.PromoLineItem) bool {
	if len(promo.ProductIDs) == 0 && len(promo.CategoryIDs) == 0 {
		return true
	}
	for _, it := range items {
		for _, pid := range promo.ProductIDs {
			if it.ProductID == pid {
				return true
			}
		}
		for _, cid := range promo.CategoryIDs {
			if it.CategoryID != "" && it.CategoryID == cid {
				return true
			}
		}
	}
	return false
}
