package routes

import (
	"net/http"

	"github.com/calloway/stitch/internal/handler/api"
	"github.com/calloway/stitch/internal/router"
)

// APIDeps contains dependencies for the storefront API routes
type APIDeps struct {
	// Guest sessions
	SessionHandler *api.SessionHandler

	// Cart
	CartHandler *api.CartHandler

	// Promo validation
	PromoHandler *api.PromoHandler

	// Orders and payments
	OrderHandler *api.OrderHandler

	// Accounts
	AuthHandler *api.AuthHandler

	// Identity resolves the caller on cart and order routes. Guest
	// callers always resolve; only a bad Bearer token rejects.
	Identity router.Middleware
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	PaymentHandler http.HandlerFunc
}
