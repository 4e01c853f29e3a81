package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/telemetry"
)

// PromoHandler validates promo codes for checkout-session display.
// Validation here is advisory only; placement re-validates server-side.
type PromoHandler struct {
	promos  domain.PromoService
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
}

func NewPromoHandler(promos domain.PromoService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *PromoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromoHandler{promos: promos, metrics: metrics, logger: logger}
}

type validatePromoRequest struct {
	Code        string                 `json:"code" validate:"required"`
	OrderAmount int64                  `json:"orderAmount" validate:"required,min=1"`
	Items       []domain.PromoLineItem `json:"items"`
}

type validatePromoResponse struct {
	Valid bool `json:"valid"`
	*domain.PromoApplication
	FinalAmount int64 `json:"finalAmount"`
}

// Validate handles POST /api/promo/validate.
func (h *PromoHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validatePromoRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	app, err := h.promos.Validate(r.Context(), req.Code, req.OrderAmount, req.Items)
	if err != nil {
		if h.metrics != nil {
			h.metrics.PromoValidated.WithLabelValues("rejected").Inc()
		}
		var minErr *domain.PromoMinOrderError
		if errors.As(err, &minErr) {
			handler.FieldErrorResponse(w, r, map[string]string{
				"orderAmount": minErr.Error(),
			})
			return
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PromoValidated.WithLabelValues("applied").Inc()
	}
	handler.JSONResponse(w, http.StatusOK, validatePromoResponse{
		Valid:            true,
		PromoApplication: app,
		FinalAmount:      req.OrderAmount - app.DiscountCents,
	})
}
