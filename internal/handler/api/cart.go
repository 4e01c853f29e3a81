package api

import (
	"log/slog"
	"net/http"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/telemetry"
)

// CartHandler exposes the cart operations. Every write responds with the
// full recomputed snapshot so clients never derive totals themselves.
type CartHandler struct {
	carts   domain.CartService
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
}

func NewCartHandler(carts domain.CartService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{carts: carts, metrics: metrics, logger: logger}
}

type cartLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type cartItemRequest struct {
	cartLineRequest
	Quantity int32 `json:"quantity" validate:"required,min=1"`
}

func (req cartLineRequest) variant() domain.Variant {
	return domain.Variant{ProductID: req.ProductID, Size: req.Size, Color: req.Color}
}

type cartResponse struct {
	Cart *domain.CartSnapshot `json:"cart"`
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	snap, err := h.carts.GetCart(r.Context(), owner)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}

// Add handles POST /api/cart/add.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req cartItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	snap, err := h.carts.AddItem(r.Context(), owner, req.variant(), req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartItemsAdd.WithLabelValues(string(owner.Kind)).Inc()
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}

// Update handles PUT /api/cart/update.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req cartItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	snap, err := h.carts.UpdateItem(r.Context(), owner, req.variant(), req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartUpdated.WithLabelValues("update").Inc()
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}

// Remove handles DELETE /api/cart/remove.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req cartLineRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	snap, err := h.carts.RemoveItem(r.Context(), owner, req.variant())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartUpdated.WithLabelValues("remove").Inc()
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}

// Clear handles DELETE /api/cart/clear.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	snap, err := h.carts.ClearCart(r.Context(), owner)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartCleared.Inc()
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}

// SaveForLater handles POST /api/cart/save-for-later.
func (h *CartHandler) SaveForLater(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req cartLineRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	snap, err := h.carts.SaveForLater(r.Context(), owner, req.variant())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartUpdated.WithLabelValues("save_for_later").Inc()
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}

// MoveToCart handles POST /api/cart/move-to-cart.
func (h *CartHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	var req cartLineRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	snap, err := h.carts.MoveToCart(r.Context(), owner, req.variant())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.CartUpdated.WithLabelValues("move_to_cart").Inc()
	}
	handler.JSONResponse(w, http.StatusOK, cartResponse{Cart: snap})
}
