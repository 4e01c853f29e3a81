package domain

import (
	"context"
	"time"
)

// Conversion checkpoint statuses. Conversion runs as checkpointed
// sub-steps so a partial failure is resumed from the step that failed,
// never restarted from scratch (restarting would double-link orders).
const (
	ConversionPending      = "pending"
	ConversionOrdersLinked = "orders_linked"
	ConversionCompleted    = "completed"
)

// ConversionState is the persisted checkpoint record for one guest
// identity's conversion.
type ConversionState struct {
	GuestToken   string
	UserID       string
	Status       string
	OrdersLinked int32
	CartMerged   bool
	DroppedLines int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversionResult reports what a convert call actually did. A repeat call
// against an already-converted guest reports zeros.
type ConversionResult struct {
	OrdersLinked int  `json:"ordersLinked"`
	CartMerged   bool `json:"cartMerged"`
	DroppedLines int  `json:"droppedLines"`
}

// ConversionService merges a guest identity's history (orders, cart) into
// a user identity, exactly once, idempotently. Conversion failures must
// never block the enclosing register/login flow; incomplete conversions
// are retried lazily on the user's next login.
type ConversionService interface {
	Convert(ctx context.Context, guestToken, userID string) (*ConversionResult, error)

	// RetryIncomplete resumes any conversion for the user that stalled
	// between checkpoints. Called best-effort on login.
	RetryIncomplete(ctx context.Context, userID string) error
}

// ConversionStore persists conversion checkpoints.
type ConversionStore interface {
	// Begin records the conversion intent, inserting a pending checkpoint
	// if none exists, and returns the current state. A concurrent or
	// repeated Begin returns the existing record unchanged.
	Begin(ctx context.Context, guestToken, userID string) (*ConversionState, error)

	Get(ctx context.Context, guestToken string) (*ConversionState, error)
	SetOrdersLinked(ctx context.Context, guestToken string, n int32) error
	Complete(ctx context.Context, guestToken string, cartMerged bool, dropped int32) error

	// ListIncompleteForUser returns unfinished conversions targeting the
	// user, oldest first.
	ListIncompleteForUser(ctx context.Context, userID string) ([]ConversionState, error)

	// ListStale returns unfinished conversions not updated since the given
	// time, oldest first, capped at limit. The cleanup worker resumes them.
	ListStale(ctx context.Context, updatedBefore time.Time, limit int32) ([]ConversionState, error)
}
