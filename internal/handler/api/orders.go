package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/service"
	"github.com/calloway/stitch/internal/telemetry"
)

// OrderHandler exposes order placement, gateway payment initiation and
// verification, and order lookup.
type OrderHandler struct {
	checkout *service.CheckoutService
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
}

func NewOrderHandler(checkout *service.CheckoutService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{checkout: checkout, metrics: metrics, logger: logger}
}

type placeOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress" validate:"required"`
	PromoCode       string                 `json:"promoCode"`
}

type orderResponse struct {
	Order *domain.Order `json:"order"`
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// PlaceOrder handles POST /api/orders: the deferred-capture (COD) path.
// The order is created and the cart cleared immediately.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.metrics != nil {
		h.metrics.CheckoutStarted.Inc()
		h.metrics.PaymentAttempts.WithLabelValues(domain.PaymentMethodCOD).Inc()
	}

	order, err := h.checkout.PlaceCODOrder(r.Context(), owner, req.ShippingAddress, req.PromoCode)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersCreated.WithLabelValues(order.PaymentMethod, string(owner.Kind)).Inc()
		h.metrics.OrderValue.Observe(float64(order.Totals.TotalCents))
	}
	handler.JSONResponse(w, http.StatusCreated, orderResponse{Order: order})
}

// CreatePayment handles POST /api/orders/create-payment: opens a gateway
// payment intent for the current cart. No order exists until the payment
// is verified.
func (h *OrderHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.metrics != nil {
		h.metrics.CheckoutStarted.Inc()
		h.metrics.PaymentAttempts.WithLabelValues(domain.PaymentMethodGateway).Inc()
	}

	result, err := h.checkout.CreatePaymentIntent(r.Context(), owner, req.ShippingAddress, req.PromoCode)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSONResponse(w, http.StatusOK, result)
}

type verifyPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

// VerifyPayment handles POST /api/orders/verify-payment: the client-side
// confirmation path. The gateway is re-queried; the client's claim of
// success is never trusted.
func (h *OrderHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req verifyPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.checkout.VerifyPayment(r.Context(), owner, req.PaymentIntentID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PaymentSucceeded.WithLabelValues(domain.PaymentMethodGateway).Inc()
		h.metrics.OrdersCreated.WithLabelValues(order.PaymentMethod, string(owner.Kind)).Inc()
		h.metrics.OrderValue.Observe(float64(order.Totals.TotalCents))
	}
	handler.JSONResponse(w, http.StatusOK, orderResponse{Order: order})
}

type paymentFailedRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	Reason          string `json:"reason"`
}

// PaymentFailed handles POST /api/orders/payment-failed. Telemetry only:
// no order or cart state changes, the customer retries from their cart.
func (h *OrderHandler) PaymentFailed(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestIdentity(w, r); !ok {
		return
	}
	var req paymentFailedRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.checkout.RecordPaymentFailure(r.Context(), req.PaymentIntentID, req.Reason, "client")
	if h.metrics != nil {
		h.metrics.PaymentFailed.WithLabelValues("client").Inc()
	}
	handler.JSONResponse(w, http.StatusOK, map[string]bool{"recorded": true})
}

// GetOrder handles GET /api/orders/{id}. The path value accepts either
// the order ID or the customer-facing ORD- number.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	ref := r.PathValue("id")
	if ref == "" {
		handler.ErrorResponse(w, r, domain.Invalid("", "Order reference is required"))
		return
	}

	var (
		order *domain.Order
		err   error
	)
	if strings.HasPrefix(ref, "ORD-") {
		order, err = h.checkout.GetOrderByNumber(r.Context(), owner, ref)
	} else {
		order, err = h.checkout.GetOrder(r.Context(), owner, ref)
	}
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSONResponse(w, http.StatusOK, orderResponse{Order: order})
}

// ListOrders handles GET /api/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	orders, err := h.checkout.ListOrders(r.Context(), owner)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	handler.JSONResponse(w, http.StatusOK, ordersResponse{Orders: orders})
}
