package domain

import (
	"context"
	"time"
)

// Order statuses.
const (
	// OrderStatusPendingFulfillment is the initial status of a
	// deferred-capture (cash-on-delivery) order.
	OrderStatusPendingFulfillment = "pending_fulfillment"

	// OrderStatusPaid is the initial status of a gateway-capture order,
	// created only after payment success is confirmed.
	OrderStatusPaid = "paid"

	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment methods.
const (
	PaymentMethodCOD     = "cod"
	PaymentMethodGateway = "gateway"
)

// Order errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrPaymentAlreadyProcessed = &Error{Code: ECONFLICT, Message: "Payment already processed for this order"}
	ErrPaymentNotSucceeded     = &Error{Code: EPAYMENT, Message: "Payment has not succeeded"}
	ErrCartEmpty               = &Error{Code: EINVALID, Message: "Cart is empty"}
)

// OrderTotals is the computed cost breakdown for an order.
// subtotalAfterDiscount = max(0, subtotal - discount);
// shipping is zero at or above the free-shipping threshold, else flat;
// tax = round(subtotalAfterDiscount * rate);
// total = subtotalAfterDiscount + shipping + tax.
type OrderTotals struct {
	SubtotalCents int64 `json:"subtotal"`
	DiscountCents int64 `json:"discount"`
	ShippingCents int64 `json:"shipping"`
	TaxCents      int64 `json:"tax"`
	TotalCents    int64 `json:"total"`
}

// ShippingAddress is the delivery destination collected during checkout.
type ShippingAddress struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
}

// OrderItem is an immutable order line, snapshotted from the cart at
// placement time. Lines are billed at the cart's priceAtAdd, never
// re-priced from the live catalog.
type OrderItem struct {
	Variant
	Quantity       int32 `json:"quantity"`
	UnitPriceCents int64 `json:"unitPrice"`
	TotalCents     int64 `json:"total"`
}

// Order is created atomically from a cart plus checkout data. Once
// created it is immutable except for status transitions. Ownership
// changes at most once, from a guest identity to a user identity via
// guest conversion.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	OwnerKind       IdentityKind    `json:"-"`
	OwnerID         string          `json:"-"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentIntentID string          `json:"-"`
	PromoCode       string          `json:"promoCode,omitempty"`
	Totals          OrderTotals     `json:"totals"`
	Currency        string          `json:"currency"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// OrderStore persists orders. CreateOrder must be atomic with the cart
// clear and must enforce payment-intent uniqueness so duplicate gateway
// callbacks cannot create a second order.
type OrderStore interface {
	// CreateOrder inserts the order and its items in one transaction.
	// When clearCartOf is non-nil the owning cart is emptied in the same
	// transaction. A duplicate non-empty PaymentIntentID fails with
	// ErrPaymentAlreadyProcessed.
	CreateOrder(ctx context.Context, o *Order, clearCartOf *Identity) (*Order, error)

	GetOrderByID(ctx context.Context, id string) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	GetOrderByPaymentIntentID(ctx context.Context, intentID string) (*Order, error)
	ListOrdersByOwner(ctx context.Context, owner Identity) ([]Order, error)

	// ReassignOwner re-points orders owned by from to to, returning the
	// number of rows moved. Orders already re-owned are not touched,
	// which makes retried conversions safe.
	ReassignOwner(ctx context.Context, from, to Identity) (int64, error)
}
