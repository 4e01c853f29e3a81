package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/stitch/internal/address"
	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/events"
	"github.com/calloway/stitch/internal/gateway"
	"github.com/calloway/stitch/internal/shipping"
	"github.com/calloway/stitch/internal/tax"
)

// Intent metadata keys. The success callback rebuilds the order entirely
// from these, so a cart edited between intent creation and capture cannot
// change what the customer pays for.
const (
	metaOwnerKind = "owner_kind"
	metaOwnerID   = "owner_id"
	metaPromoCode = "promo_code"
	metaAddress   = "address"
	metaItems     = "items"
	metaTotals    = "totals"
)

// ErrAddressInvalid is returned when the shipping address fails
// validation before any gateway interaction.
type ErrAddressInvalid struct {
	Errors []address.ValidationError
}

func (e *ErrAddressInvalid) Error() string {
	fields := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		fields[i] = ve.Field
	}
	return fmt.Sprintf("shipping address is invalid: %s", strings.Join(fields, ", "))
}

// PaymentIntentResult is what the client needs to confirm a gateway
// payment.
type PaymentIntentResult struct {
	IntentID       string             `json:"paymentIntentId"`
	ClientSecret   string             `json:"clientSecret"`
	PublishableKey string             `json:"key"`
	AmountCents    int64              `json:"amount"`
	Currency       string             `json:"currency"`
	Totals         domain.OrderTotals `json:"totals"`
}

// CheckoutService orchestrates order placement. Deferred capture (COD)
// creates the order immediately; gateway capture creates it only after a
// verified payment success, idempotently against duplicate callbacks.
type CheckoutService struct {
	carts    domain.CartService
	orders   domain.OrderStore
	promos   domain.PromoService
	catalog  domain.Catalog
	provider gateway.Provider
	quoter   shipping.Quoter
	taxer    tax.Calculator
	addrs    address.Validator
	events   events.Publisher
	currency string
	logger   *slog.Logger
}

func NewCheckoutService(
	carts domain.CartService,
	orders domain.OrderStore,
	promos domain.PromoService,
	catalog domain.Catalog,
	provider gateway.Provider,
	quoter shipping.Quoter,
	taxer tax.Calculator,
	addrs address.Validator,
	publisher events.Publisher,
	currency string,
	logger *slog.Logger,
) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		promos:   promos,
		catalog:  catalog,
		provider: provider,
		quoter:   quoter,
		taxer:    taxer,
		addrs:    addrs,
		events:   publisher,
		currency: currency,
		logger:   logger,
	}
}

// Quote prices the current cart with an optional promo code applied.
// The promo is re-validated here even if the client validated it earlier;
// client-held promo state is never trusted at placement.
func (s *CheckoutService) Quote(ctx context.Context, owner domain.Identity, promoCode string) (*domain.OrderTotals, *domain.CartSnapshot, error) {
	cart, err := s.carts.GetCart(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	if len(cart.Lines) == 0 {
		return nil, nil, domain.ErrCartEmpty
	}

	var discount int64
	if promoCode != "" {
		items, err := s.promoItems(ctx, cart)
		if err != nil {
			return nil, nil, err
		}
		app, err := s.promos.Validate(ctx, promoCode, cart.SubtotalCents, items)
		if err != nil {
			return nil, nil, err
		}
		discount = app.DiscountCents
	}

	afterDiscount := cart.SubtotalCents - discount
	if afterDiscount < 0 {
		afterDiscount = 0
	}

	shippingCents, err := s.quoter.QuoteCents(ctx, afterDiscount)
	if err != nil {
		return nil, nil, err
	}
	taxCents, err := s.taxer.CalculateCents(ctx, afterDiscount)
	if err != nil {
		return nil, nil, err
	}

	return &domain.OrderTotals{
		SubtotalCents: cart.SubtotalCents,
		DiscountCents: discount,
		ShippingCents: shippingCents,
		TaxCents:      taxCents,
		TotalCents:    afterDiscount + shippingCents + taxCents,
	}, cart, nil
}

// PlaceCODOrder creates a deferred-capture order immediately and clears
// the cart in the same transaction.
func (s *CheckoutService) PlaceCODOrder(ctx context.Context, owner domain.Identity, addr domain.ShippingAddress, promoCode string) (*domain.Order, error) {
	if err := s.validateAddress(ctx, addr); err != nil {
		return nil, err
	}
	totals, cart, err := s.Quote(ctx, owner, promoCode)
	if err != nil {
		return nil, err
	}

	order := buildOrder(owner, cart, addr, promoCode, *totals, s.currency)
	order.Status = domain.OrderStatusPendingFulfillment
	order.PaymentMethod = domain.PaymentMethodCOD

	created, err := s.orders.CreateOrder(ctx, order, &owner)
	if err != nil {
		return nil, err
	}
	s.publishOrderCreated(ctx, created)
	return created, nil
}

// CreatePaymentIntent opens a gateway payment for the current cart. No
// order exists yet; the order data rides in the intent metadata until a
// verified success creates it.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, owner domain.Identity, addr domain.ShippingAddress, promoCode string) (*PaymentIntentResult, error) {
	if err := s.validateAddress(ctx, addr); err != nil {
		return nil, err
	}
	totals, cart, err := s.Quote(ctx, owner, promoCode)
	if err != nil {
		return nil, err
	}

	meta, err := encodeIntentMetadata(owner, cart, addr, promoCode, *totals)
	if err != nil {
		return nil, err
	}

	intent, err := s.provider.OpenIntent(ctx, gateway.OpenIntentParams{
		AmountCents: totals.TotalCents,
		Currency:    s.currency,
		Description: fmt.Sprintf("Order for %s %s", owner.Kind, owner.ID),
		Metadata:    meta,
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, "checkout.intent", "Failed to initiate payment")
	}

	return &PaymentIntentResult{
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.provider.PublishableKey(),
		AmountCents:    intent.AmountCents,
		Currency:       intent.Currency,
		Totals:         *totals,
	}, nil
}

// VerifyPayment is the client-side confirmation path. The intent status
// is re-fetched from the provider; the client's claim of success is never
// enough. Succeeded intents create the order exactly once.
func (s *CheckoutService) VerifyPayment(ctx context.Context, owner domain.Identity, intentID string) (*domain.Order, error) {
	intent, err := s.provider.GetIntent(ctx, intentID)
	if err != nil {
		if err == gateway.ErrIntentNotFound {
			return nil, domain.NotFound("checkout.verify", "payment", intentID)
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "checkout.verify", "Failed to verify payment")
	}
	if intent.Metadata[metaOwnerKind] != string(owner.Kind) || intent.Metadata[metaOwnerID] != owner.ID {
		return nil, domain.NotFound("checkout.verify", "payment", intentID)
	}
	if intent.Status != gateway.IntentStatusSucceeded {
		return nil, domain.ErrPaymentNotSucceeded
	}
	return s.captureOrder(ctx, intent.ID, intent.Metadata)
}

// HandleCallback processes a signature-verified gateway event. Success
// creates the order; replays are absorbed; failures are recorded as
// telemetry only.
func (s *CheckoutService) HandleCallback(ctx context.Context, evt *gateway.CallbackEvent) error {
	switch evt.Type {
	case gateway.EventPaymentSucceeded:
		_, err := s.captureOrder(ctx, evt.IntentID, evt.Metadata)
		return err
	case gateway.EventPaymentFailed:
		s.RecordPaymentFailure(ctx, evt.IntentID, "", "gateway")
		return nil
	default:
		return nil
	}
}

// RecordPaymentFailure records a failed payment attempt. Deliberately no
// order or cart state changes: the customer can retry from the cart they
// still have.
func (s *CheckoutService) RecordPaymentFailure(ctx context.Context, intentID, reason, source string) {
	s.logger.Info("payment failed",
		slog.String("intent_id", intentID),
		slog.String("source", source),
		slog.String("reason", reason),
	)
	if err := s.events.Publish(ctx, events.SubjectPaymentFailed, events.PaymentFailed{
		IntentID: intentID,
		Reason:   reason,
		Source:   source,
	}); err != nil {
		s.logger.Warn("failed to publish payment.failed event", slog.String("error", err.Error()))
	}
}

// GetOrder fetches an order the identity owns. Other identities' orders
// read as not found.
func (s *CheckoutService) GetOrder(ctx context.Context, owner domain.Identity, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OwnerKind != owner.Kind || order.OwnerID != owner.ID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByNumber is GetOrder keyed by the customer-facing order number.
func (s *CheckoutService) GetOrderByNumber(ctx context.Context, owner domain.Identity, number string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order.OwnerKind != owner.Kind || order.OwnerID != owner.ID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the identity's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, owner domain.Identity) ([]domain.Order, error) {
	return s.orders.ListOrdersByOwner(ctx, owner)
}

// captureOrder creates the gateway-captured order from intent metadata.
// The store's payment-intent uniqueness turns a replay into a read of the
// already-created order.
func (s *CheckoutService) captureOrder(ctx context.Context, intentID string, meta map[string]string) (*domain.Order, error) {
	order, ownerPtr, err := decodeIntentMetadata(intentID, meta, s.currency)
	if err != nil {
		return nil, err
	}

	created, err := s.orders.CreateOrder(ctx, order, ownerPtr)
	if err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			existing, getErr := s.orders.GetOrderByPaymentIntentID(ctx, intentID)
			if getErr != nil {
				return nil, getErr
			}
			return existing, nil
		}
		return nil, err
	}
	s.publishOrderCreated(ctx, created)
	return created, nil
}

func (s *CheckoutService) validateAddress(ctx context.Context, addr domain.ShippingAddress) error {
	res, err := s.addrs.Validate(ctx, addr)
	if err != nil {
		return err
	}
	if !res.IsValid {
		return &ErrAddressInvalid{Errors: res.Errors}
	}
	return nil
}

func (s *CheckoutService) promoItems(ctx context.Context, cart *domain.CartSnapshot) ([]domain.PromoLineItem, error) {
	items := make([]domain.PromoLineItem, len(cart.Lines))
	for i, l := range cart.Lines {
		item := domain.PromoLineItem{ProductID: l.ProductID, Quantity: l.Quantity}
		if fact, err := s.catalog.GetVariant(ctx, l.Variant); err == nil {
			item.CategoryID = fact.CategoryID
		}
		items[i] = item
	}
	return items, nil
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, o *domain.Order) {
	if err := s.events.Publish(ctx, events.SubjectOrderCreated, events.OrderCreated{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		OwnerKind:     string(o.OwnerKind),
		PaymentMethod: o.PaymentMethod,
		TotalCents:    o.Totals.TotalCents,
		Currency:      o.Currency,
	}); err != nil {
		s.logger.Warn("failed to publish order.created event",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
}

// buildOrder snapshots the cart into immutable order lines billed at
// priceAtAdd.
func buildOrder(owner domain.Identity, cart *domain.CartSnapshot, addr domain.ShippingAddress, promoCode string, totals domain.OrderTotals, currency string) *domain.Order {
	items := make([]domain.OrderItem, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = domain.OrderItem{
			Variant:        l.Variant,
			Quantity:       l.Quantity,
			UnitPriceCents: l.PriceAtAddCents,
			TotalCents:     l.LineSubtotalCents(),
		}
	}
	return &domain.Order{
		OrderNumber:     newOrderNumber(),
		OwnerKind:       owner.Kind,
		OwnerID:         owner.ID,
		PromoCode:       strings.ToUpper(strings.TrimSpace(promoCode)),
		Totals:          totals,
		Currency:        currency,
		Items:           items,
		ShippingAddress: addr,
	}
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func encodeIntentMetadata(owner domain.Identity, cart *domain.CartSnapshot, addr domain.ShippingAddress, promoCode string, totals domain.OrderTotals) (map[string]string, error) {
	items := make([]domain.OrderItem, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = domain.OrderItem{
			Variant:        l.Variant,
			Quantity:       l.Quantity,
			UnitPriceCents: l.PriceAtAddCents,
			TotalCents:     l.LineSubtotalCents(),
		}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "checkout.intent", "Failed to encode order items")
	}
	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "checkout.intent", "Failed to encode address")
	}
	totalsJSON, err := json.Marshal(totals)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "checkout.intent", "Failed to encode totals")
	}
	return map[string]string{
		metaOwnerKind: string(owner.Kind),
		metaOwnerID:   owner.ID,
		metaPromoCode: strings.ToUpper(strings.TrimSpace(promoCode)),
		metaAddress:   string(addrJSON),
		metaItems:     string(itemsJSON),
		metaTotals:    string(totalsJSON),
	}, nil
}

func decodeIntentMetadata(intentID string, meta map[string]string, currency string) (*domain.Order, *domain.Identity, error) {
	kind := domain.IdentityKind(meta[metaOwnerKind])
	ownerID := meta[metaOwnerID]
	if (kind != domain.KindGuest && kind != domain.KindUser) || ownerID == "" {
		return nil, nil, domain.Errorf(domain.EINTERNAL, "checkout.capture", "payment intent %s is missing owner metadata", intentID)
	}
	owner := domain.Identity{Kind: kind, ID: ownerID}

	var items []domain.OrderItem
	if err := json.Unmarshal([]byte(meta[metaItems]), &items); err != nil {
		return nil, nil, domain.WrapError(err, domain.EINTERNAL, "checkout.capture", "Failed to decode order items")
	}
	var addr domain.ShippingAddress
	if err := json.Unmarshal([]byte(meta[metaAddress]), &addr); err != nil {
		return nil, nil, domain.WrapError(err, domain.EINTERNAL, "checkout.capture", "Failed to decode address")
	}
	var totals domain.OrderTotals
	if err := json.Unmarshal([]byte(meta[metaTotals]), &totals); err != nil {
		return nil, nil, domain.WrapError(err, domain.EINTERNAL, "checkout.capture", "Failed to decode totals")
	}

	return &domain.Order{
		OrderNumber:     newOrderNumber(),
		OwnerKind:       owner.Kind,
		OwnerID:         owner.ID,
		Status:          domain.OrderStatusPaid,
		PaymentMethod:   domain.PaymentMethodGateway,
		PaymentIntentID: intentID,
		PromoCode:       meta[metaPromoCode],
		Totals:          totals,
		Currency:        currency,
		Items:           items,
		ShippingAddress: addr,
	}, &owner, nil
}
