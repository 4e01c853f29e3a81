// Package gateway abstracts the external payment processor. The checkout
// core never trusts client-reported payment state; only intents fetched
// from the provider or signature-verified callbacks count.
package gateway

import (
	"context"
	"errors"
)

// Intent statuses, normalized across providers.
const (
	IntentStatusPending   = "pending"
	IntentStatusSucceeded = "succeeded"
	IntentStatusFailed    = "failed"
	IntentStatusCancelled = "cancelled"
)

// Callback event types.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventIgnored          = "ignored"
)

var (
	// ErrInvalidSignature is returned when a callback fails signature
	// verification. Such callbacks must be rejected without side effects.
	ErrInvalidSignature = errors.New("gateway: invalid callback signature")

	// ErrIntentNotFound is returned when the provider has no record of
	// the referenced payment intent.
	ErrIntentNotFound = errors.New("gateway: payment intent not found")
)

// Intent is a provider-side payment intent. Metadata carries the order
// context (owner identity, promo code) so the success callback can place
// the order without client input.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

// OpenIntentParams describes the payment to authorize.
type OpenIntentParams struct {
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// CallbackEvent is a signature-verified provider callback, normalized to
// the small event vocabulary the checkout core reacts to.
type CallbackEvent struct {
	Type        string
	EventID     string
	IntentID    string
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

// Provider is the payment processor integration.
type Provider interface {
	// OpenIntent registers a payment of the given amount with the
	// provider and returns the intent the client confirms against.
	OpenIntent(ctx context.Context, params OpenIntentParams) (*Intent, error)

	// GetIntent fetches the provider's current view of an intent. Used to
	// re-check status server-side; the client's word is never enough.
	GetIntent(ctx context.Context, id string) (*Intent, error)

	// ParseCallback verifies the callback signature and decodes the event.
	// A bad signature fails with ErrInvalidSignature.
	ParseCallback(payload []byte, signature string) (*CallbackEvent, error)

	// PublishableKey returns the client-side key the frontend initializes
	// the provider SDK with.
	PublishableKey() string
}
