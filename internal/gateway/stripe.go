package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using Stripe payment intents.
type StripeProvider struct {
	publishableKey string
	webhookSecret  string
	logger         *slog.Logger
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a Stripe-backed payment provider.
func NewStripeProvider(secretKey, publishableKey, webhookSecret string, logger *slog.Logger) *StripeProvider {
	stripe.Key = secretKey
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeProvider{
		publishableKey: publishableKey,
		webhookSecret:  webhookSecret,
		logger:         logger,
	}
}

func (p *StripeProvider) OpenIntent(ctx context.Context, params OpenIntentParams) (*Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.Context = ctx
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to create payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

func (p *StripeProvider) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.HTTPStatusCode == 404 {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("stripe: failed to fetch payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

func (p *StripeProvider) ParseCallback(payload []byte, signature string) (*CallbackEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		p.logger.Warn("stripe webhook signature verification failed", slog.String("error", err.Error()))
		return nil, ErrInvalidSignature
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		return &CallbackEvent{Type: EventIgnored, EventID: event.ID}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: failed to decode event payload: %w", err)
	}

	evt := &CallbackEvent{
		EventID:     event.ID,
		IntentID:    pi.ID,
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Metadata:    pi.Metadata,
	}
	if event.Type == "payment_intent.succeeded" {
		evt.Type = EventPaymentSucceeded
	} else {
		evt.Type = EventPaymentFailed
	}
	return evt, nil
}

func (p *StripeProvider) PublishableKey() string {
	return p.publishableKey
}

func fromStripeIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       normalizeStripeStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
}

func normalizeStripeStatus(s stripe.PaymentIntentStatus) string {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentStatusCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusProcessing:
		return IntentStatusPending
	default:
		return IntentStatusFailed
	}
}
