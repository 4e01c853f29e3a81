package service

import (
	"context"
	"log/slog"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/events"
)

// ConversionService implements domain.ConversionService. Conversion runs
// as checkpointed sub-steps (orders linked, cart merged) persisted per
// guest token; a retried call resumes from the last completed checkpoint
// instead of repeating work that already happened.
type ConversionService struct {
	checkpoints domain.ConversionStore
	sessions    domain.SessionStore
	orders      domain.OrderStore
	carts       domain.CartStore
	events      events.Publisher
	logger      *slog.Logger
}

var _ domain.ConversionService = (*ConversionService)(nil)

func NewConversionService(
	checkpoints domain.ConversionStore,
	sessions domain.SessionStore,
	orders domain.OrderStore,
	carts domain.CartStore,
	publisher events.Publisher,
	logger *slog.Logger,
) *ConversionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversionService{
		checkpoints: checkpoints,
		sessions:    sessions,
		orders:      orders,
		carts:       carts,
		events:      publisher,
		logger:      logger,
	}
}

func (s *ConversionService) Convert(ctx context.Context, guestToken, userID string) (*domain.ConversionResult, error) {
	st, err := s.checkpoints.Begin(ctx, guestToken, userID)
	if err != nil {
		return nil, err
	}
	if st.UserID != userID {
		return nil, domain.Conflict("conversion.convert", "Guest session already belongs to a different account")
	}

	// Terminal repeat: everything already happened, report zeros so the
	// caller does not double-announce merged history.
	if st.Status == domain.ConversionCompleted {
		return &domain.ConversionResult{}, nil
	}

	guest := domain.NewGuestIdentity(guestToken, st.CreatedAt)
	user := domain.NewUserIdentity(userID)

	ordersLinked := st.OrdersLinked
	if st.Status == domain.ConversionPending {
		n, err := s.orders.ReassignOwner(ctx, guest, user)
		if err != nil {
			return nil, err
		}
		ordersLinked = int32(n)
		if err := s.checkpoints.SetOrdersLinked(ctx, guestToken, ordersLinked); err != nil {
			return nil, err
		}
	}

	moved, dropped, err := s.carts.MergeLines(ctx, guest, user)
	if err != nil {
		return nil, err
	}
	cartMerged := moved > 0

	if err := s.checkpoints.Complete(ctx, guestToken, cartMerged, dropped); err != nil {
		return nil, err
	}
	if err := s.sessions.MarkConverted(ctx, guestToken, userID); err != nil {
		// The checkpoint is already terminal; a stale session record only
		// means the next resolve re-issues a fresh guest session.
		s.logger.Warn("failed to mark guest session converted",
			slog.String("guest_token", guestToken),
			slog.String("error", err.Error()),
		)
	}

	result := &domain.ConversionResult{
		OrdersLinked: int(ordersLinked),
		CartMerged:   cartMerged,
		DroppedLines: int(dropped),
	}
	if err := s.events.Publish(ctx, events.SubjectGuestConverted, events.GuestConverted{
		UserID:       userID,
		OrdersLinked: result.OrdersLinked,
		CartMerged:   result.CartMerged,
		DroppedLines: result.DroppedLines,
	}); err != nil {
		s.logger.Warn("failed to publish guest.converted event", slog.String("error", err.Error()))
	}
	return result, nil
}

func (s *ConversionService) RetryIncomplete(ctx context.Context, userID string) error {
	stuck, err := s.checkpoints.ListIncompleteForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, st := range stuck {
		if _, err := s.Convert(ctx, st.GuestToken, userID); err != nil {
			s.logger.Warn("conversion retry failed",
				slog.String("guest_token", st.GuestToken),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
