package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/calloway/stitch/internal/gateway"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/middleware"
	"github.com/calloway/stitch/internal/service"
	"github.com/calloway/stitch/internal/telemetry"
)

// SignatureHeader carries the provider's callback signature.
const SignatureHeader = "Stripe-Signature"

// PaymentHandler processes gateway payment callbacks. Signature
// verification happens before anything else; an unverified payload must
// cause no side effects at all.
type PaymentHandler struct {
	provider gateway.Provider
	checkout *service.CheckoutService
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
}

func NewPaymentHandler(provider gateway.Provider, checkout *service.CheckoutService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		provider: provider,
		checkout: checkout,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleCallback handles POST /webhooks/payment.
//
// Response codes drive provider retry behavior: 2xx acknowledges the
// event, 4xx rejects it permanently, 5xx asks the provider to retry.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	evt, err := h.provider.ParseCallback(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		if h.metrics != nil {
			h.metrics.WebhookFailed.WithLabelValues("unknown", "bad_signature").Inc()
		}
		logger.Warn("rejected payment callback", slog.String("error", err.Error()))
		if errors.Is(err, gateway.ErrInvalidSignature) {
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if h.metrics != nil {
		h.metrics.WebhookReceived.WithLabelValues(evt.Type).Inc()
	}

	if evt.Type == gateway.EventIgnored {
		acknowledge(w)
		return
	}

	if err := h.checkout.HandleCallback(r.Context(), evt); err != nil {
		if h.metrics != nil {
			h.metrics.WebhookFailed.WithLabelValues(evt.Type, "processing_error").Inc()
		}
		logger.Error("payment callback processing failed",
			slog.String("event_id", evt.EventID),
			slog.String("intent_id", evt.IntentID),
			slog.String("error", err.Error()),
		)
		// Non-2xx so the provider redelivers; capture is idempotent.
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.WebhookProcessed.WithLabelValues(evt.Type).Inc()
		switch evt.Type {
		case gateway.EventPaymentSucceeded:
			h.metrics.PaymentSucceeded.WithLabelValues("gateway").Inc()
		case gateway.EventPaymentFailed:
			h.metrics.PaymentFailed.WithLabelValues("gateway").Inc()
		}
	}
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}
