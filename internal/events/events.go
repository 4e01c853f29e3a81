// Package events publishes domain events to interested consumers
// (fulfillment, analytics, email). Publishing is fire-and-forget: a
// failed publish is logged, never surfaced to the customer.
package events

import "context"

// Subjects.
const (
	SubjectOrderCreated   = "stitch.order.created"
	SubjectPaymentFailed  = "stitch.payment.failed"
	SubjectGuestConverted = "stitch.guest.converted"
)

// OrderCreated is emitted once per placed order, for both COD and
// gateway-captured orders.
type OrderCreated struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	OwnerKind     string `json:"ownerKind"`
	PaymentMethod string `json:"paymentMethod"`
	TotalCents    int64  `json:"totalCents"`
	Currency      string `json:"currency"`
}

// PaymentFailed is emitted when the client or the gateway reports a
// failed payment attempt. No order state is attached because none exists.
type PaymentFailed struct {
	IntentID string `json:"intentId,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Source   string `json:"source"` // "client" | "gateway"
}

// GuestConverted is emitted when a guest identity finishes merging into
// a user account.
type GuestConverted struct {
	UserID       string `json:"userId"`
	OrdersLinked int    `json:"ordersLinked"`
	CartMerged   bool   `json:"cartMerged"`
	DroppedLines int    `json:"droppedLines"`
}

// Publisher delivers domain events. Implementations: NATSPublisher,
// MemoryPublisher (tests), NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close()
}
