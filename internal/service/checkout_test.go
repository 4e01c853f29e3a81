package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/stitch/internal/address"
	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/events"
	"github.com/calloway/stitch/internal/gateway"
	"github.com/calloway/stitch/internal/shipping"
	"github.com/calloway/stitch/internal/tax"
)

// Pricing knobs shared by the checkout tests: free shipping from 2000,
// flat fee 99, 18% tax.
const (
	testFreeShippingThreshold = 2000
	testFlatShippingFee       = 99
	testTaxRate               = 0.18
)

var (
	kurtaM = domain.Variant{ProductID: "kurta-1", Size: "M", Color: "blue"}
	scarf  = domain.Variant{ProductID: "scarf-3", Size: "", Color: "red"}
)

type checkoutFixture struct {
	svc       *CheckoutService
	carts     *CartService
	cartStore *memCartStore
	orders    *memOrderStore
	promos    *memPromoStore
	catalog   *memCatalog
	provider  *gateway.MockProvider
	published *events.MemoryPublisher
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	catalog := newMemCatalog()
	catalog.put(kurtaM, 600, true, "ethnic")
	catalog.put(scarf, 200, true, "accessories")

	cartStore := newMemCartStore(catalog)
	carts := NewCartService(cartStore, catalog, testLogger())

	promoStore := newMemPromoStore()
	promoStore.put(domain.PromoCode{
		Code:          "SAVE10",
		Description:   "10% off",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 10,
		Active:        true,
	})
	promoStore.put(domain.PromoCode{
		Code:          "FLAT5000",
		DiscountType:  domain.DiscountFixed,
		DiscountValue: 5000,
		Active:        true,
	})

	orders := newMemOrderStore(cartStore, promoStore)
	provider := gateway.NewMockProvider()
	published := events.NewMemoryPublisher()

	svc := NewCheckoutService(
		carts,
		orders,
		NewPromoService(promoStore),
		catalog,
		provider,
		shipping.NewFlatRateQuoter(testFreeShippingThreshold, testFlatShippingFee),
		tax.NewPercentageCalculator(testTaxRate),
		address.NewBasicValidator("IN"),
		published,
		"INR",
		testLogger(),
	)
	return &checkoutFixture{
		svc:       svc,
		carts:     carts,
		cartStore: cartStore,
		orders:    orders,
		promos:    promoStore,
		catalog:   catalog,
		provider:  provider,
		published: published,
	}
}

func shipTo() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:     "Priya Nair",
		AddressLine1: "14 Hill Road",
		City:         "Mumbai",
		State:        "MH",
		PostalCode:   "400050",
		Country:      "IN",
		Phone:        "+91 98200 00000",
	}
}

func (f *checkoutFixture) fillCart(t *testing.T, owner domain.Identity, v domain.Variant, qty int32) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), owner, v, qty)
	require.NoError(t, err)
}

func TestCheckout_Quote_NoPromo(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3) // subtotal 1800

	totals, _, err := f.svc.Quote(context.Background(), owner, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), totals.SubtotalCents)
	assert.Equal(t, int64(0), totals.DiscountCents)
	assert.Equal(t, int64(99), totals.ShippingCents)
	assert.Equal(t, int64(324), totals.TaxCents) // 18% of 1800
	assert.Equal(t, int64(2223), totals.TotalCents)
}

func TestCheckout_Quote_WithPercentagePromo(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3) // subtotal 1800

	totals, _, err := f.svc.Quote(context.Background(), owner, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(180), totals.DiscountCents)
	assert.Equal(t, int64(99), totals.ShippingCents)  // 1620 below threshold
	assert.Equal(t, int64(292), totals.TaxCents)      // round(1620 * 0.18) = 291.6
	assert.Equal(t, int64(2011), totals.TotalCents)
}

func TestCheckout_Quote_FreeShippingAtThreshold(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 4) // subtotal 2400

	totals, _, err := f.svc.Quote(context.Background(), owner, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.ShippingCents)
	assert.Equal(t, int64(432), totals.TaxCents)
	assert.Equal(t, int64(2832), totals.TotalCents)
}

func TestCheckout_Quote_DiscountNeverPushesBelowZero(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3) // subtotal 1800, fixed discount 5000

	totals, _, err := f.svc.Quote(context.Background(), owner, "FLAT5000")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), totals.DiscountCents) // clamped to order amount
	assert.Equal(t, int64(99), totals.ShippingCents)   // 0 is below threshold
	assert.Equal(t, int64(0), totals.TaxCents)
	assert.Equal(t, int64(99), totals.TotalCents)
}

func TestCheckout_Quote_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)

	_, _, err := f.svc.Quote(context.Background(), domain.NewUserIdentity("user-1"), "")
	assert.ErrorIs(t, err, domain.ErrCartEmpty)
}

func TestCheckout_PlaceCODOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	order, err := f.svc.PlaceCODOrder(context.Background(), owner, shipTo(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPendingFulfillment, order.Status)
	assert.Equal(t, domain.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, int64(2011), order.Totals.TotalCents)
	assert.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(600), order.Items[0].UnitPriceCents)

	// Cart cleared atomically with placement.
	snap, err := f.carts.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)

	// Promo usage counted at placement.
	promo, err := f.promos.GetByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int32(1), promo.UsedCount)

	assert.Len(t, f.published.BySubject(events.SubjectOrderCreated), 1)
}

func TestCheckout_PlaceCODOrder_InvalidAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 1)

	addr := shipTo()
	addr.PostalCode = ""
	_, err := f.svc.PlaceCODOrder(context.Background(), owner, addr, "")

	var invalid *ErrAddressInvalid
	require.True(t, errors.As(err, &invalid))
	require.Len(t, invalid.Errors, 1)
	assert.Equal(t, "postalCode", invalid.Errors[0].Field)

	// Nothing was placed, cart untouched.
	snap, err := f.carts.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)
}

func TestCheckout_CreatePaymentIntent(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewGuestIdentity("guest-9", time.Now().Add(24*time.Hour))
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int64(2011), result.AmountCents)
	assert.NotEmpty(t, result.ClientSecret)
	assert.Equal(t, "pk_test_mock", result.PublishableKey)

	// No order yet; the cart survives until payment succeeds.
	orders, err := f.orders.ListOrdersByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, orders)
	snap, err := f.carts.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1)
}

func TestCheckout_CreatePaymentIntent_UndeliverableAddressNeverReachesGateway(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 1)

	addr := shipTo()
	addr.Country = "US"
	_, err := f.svc.CreatePaymentIntent(context.Background(), owner, addr, "")

	var invalid *ErrAddressInvalid
	require.True(t, errors.As(err, &invalid))
	assert.Empty(t, f.provider.CallLog)
}

func TestCheckout_VerifyPayment_NotSucceeded(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)

	// Client claims success; the provider still says pending.
	_, err = f.svc.VerifyPayment(context.Background(), owner, result.IntentID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotSucceeded)

	orders, err := f.orders.ListOrdersByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckout_VerifyPayment_Success(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "SAVE10")
	require.NoError(t, err)
	f.provider.SucceedIntent(result.IntentID)

	order, err := f.svc.VerifyPayment(context.Background(), owner, result.IntentID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, domain.PaymentMethodGateway, order.PaymentMethod)
	assert.Equal(t, result.IntentID, order.PaymentIntentID)
	assert.Equal(t, int64(2011), order.Totals.TotalCents)

	snap, err := f.carts.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines, "cart cleared with order creation")

	promo, err := f.promos.GetByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, int32(1), promo.UsedCount)
}

func TestCheckout_VerifyPayment_WrongOwnerReadsAsNotFound(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)
	f.provider.SucceedIntent(result.IntentID)

	_, err = f.svc.VerifyPayment(context.Background(), domain.NewUserIdentity("user-2"), result.IntentID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestCheckout_DuplicateCallbacksCreateOneOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)
	evt := f.provider.SucceedIntent(result.IntentID)

	require.NoError(t, f.svc.HandleCallback(context.Background(), evt))
	require.NoError(t, f.svc.HandleCallback(context.Background(), evt))
	require.NoError(t, f.svc.HandleCallback(context.Background(), evt))

	orders, err := f.orders.ListOrdersByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Len(t, f.published.BySubject(events.SubjectOrderCreated), 1)
}

func TestCheckout_VerifyAndCallbackConverge(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)
	evt := f.provider.SucceedIntent(result.IntentID)

	verified, err := f.svc.VerifyPayment(context.Background(), owner, result.IntentID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleCallback(context.Background(), evt))

	orders, err := f.orders.ListOrdersByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, verified.ID, orders[0].ID)
}

func TestCheckout_CapturedOrderIgnoresLaterCartEdits(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)

	// Customer keeps shopping while the payment settles.
	f.fillCart(t, owner, scarf, 5)

	evt := f.provider.SucceedIntent(result.IntentID)
	require.NoError(t, f.svc.HandleCallback(context.Background(), evt))

	orders, err := f.orders.ListOrdersByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "kurta-1", orders[0].Items[0].ProductID)
	assert.Equal(t, int64(2223), orders[0].Totals.TotalCents)
}

func TestCheckout_FailureCallbackChangesNothing(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	result, err := f.svc.CreatePaymentIntent(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleCallback(context.Background(), &gateway.CallbackEvent{
		Type:     gateway.EventPaymentFailed,
		IntentID: result.IntentID,
	}))

	orders, err := f.orders.ListOrdersByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, orders)

	snap, err := f.carts.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1, "failed payment leaves the cart for retry")

	assert.Len(t, f.published.BySubject(events.SubjectPaymentFailed), 1)
}

func TestCheckout_GetOrder_OwnershipEnforced(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := domain.NewUserIdentity("user-1")
	f.fillCart(t, owner, kurtaM, 3)

	order, err := f.svc.PlaceCODOrder(context.Background(), owner, shipTo(), "")
	require.NoError(t, err)

	got, err := f.svc.GetOrder(context.Background(), owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.GetOrder(context.Background(), domain.NewUserIdentity("user-2"), order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
