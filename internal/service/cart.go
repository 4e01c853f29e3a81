package service

import (
	"context"
	"log/slog"

	"github.com/calloway/stitch/internal/domain"
)

// CartService implements domain.CartService. The store does the heavy
// lifting for concurrency: adds increment atomically, direct quantity
// sets are last-write-wins, and list moves are single writes.
type CartService struct {
	store   domain.CartStore
	catalog domain.Catalog
	logger  *slog.Logger
}

var _ domain.CartService = (*CartService)(nil)

func NewCartService(store domain.CartStore, catalog domain.Catalog, logger *slog.Logger) *CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartService{store: store, catalog: catalog, logger: logger}
}

func (s *CartService) GetCart(ctx context.Context, owner domain.Identity) (*domain.CartSnapshot, error) {
	return s.snapshot(ctx, owner)
}

func (s *CartService) AddItem(ctx context.Context, owner domain.Identity, v domain.Variant, quantity int32) (*domain.CartSnapshot, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	fact, err := s.catalog.GetVariant(ctx, v)
	if err != nil {
		return nil, err
	}
	if !fact.Orderable {
		return nil, domain.ErrVariantUnavailable
	}

	// The price passed here only lands on a fresh line; an existing line
	// keeps the snapshot from its first add.
	if err := s.store.AddLine(ctx, owner, v, quantity, fact.PriceCents); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, owner)
}

func (s *CartService) UpdateItem(ctx context.Context, owner domain.Identity, v domain.Variant, quantity int32) (*domain.CartSnapshot, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	ok, err := s.store.SetQuantity(ctx, owner, v, quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrCartLineNotFound
	}
	return s.snapshot(ctx, owner)
}

func (s *CartService) RemoveItem(ctx context.Context, owner domain.Identity, v domain.Variant) (*domain.CartSnapshot, error) {
	if err := s.store.RemoveLine(ctx, owner, v); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, owner)
}

func (s *CartService) ClearCart(ctx context.Context, owner domain.Identity) (*domain.CartSnapshot, error) {
	if err := s.store.Clear(ctx, owner); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, owner)
}

func (s *CartService) SaveForLater(ctx context.Context, owner domain.Identity, v domain.Variant) (*domain.CartSnapshot, error) {
	return s.move(ctx, owner, v, true)
}

func (s *CartService) MoveToCart(ctx context.Context, owner domain.Identity, v domain.Variant) (*domain.CartSnapshot, error) {
	return s.move(ctx, owner, v, false)
}

func (s *CartService) move(ctx context.Context, owner domain.Identity, v domain.Variant, toSaved bool) (*domain.CartSnapshot, error) {
	ok, err := s.store.MoveLine(ctx, owner, v, toSaved)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrCartLineNotFound
	}
	return s.snapshot(ctx, owner)
}

func (s *CartService) snapshot(ctx context.Context, owner domain.Identity) (*domain.CartSnapshot, error) {
	lines, saved, updatedAt, err := s.store.GetLines(ctx, owner)
	if err != nil {
		return nil, err
	}
	snap := &domain.CartSnapshot{
		Owner:     owner,
		Lines:     lines,
		Saved:     saved,
		UpdatedAt: updatedAt,
	}
	snap.Recompute()
	return snap, nil
}
