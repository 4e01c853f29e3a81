package routes

import (
	"github.com/calloway/stitch/internal/router"
)

// RegisterAPIRoutes registers the storefront API.
//
// Cart and order routes run behind the identity middleware: a guest
// caller is always admitted with a session resolved from X-Guest-Session,
// so none of these routes 401 a first-time visitor.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Guest session bootstrap and account auth resolve identity
	// themselves, so they stay outside the middleware.
	r.Post("/api/guest/session", deps.SessionHandler.InitSession)
	r.Post("/api/auth/register", deps.AuthHandler.Register)
	r.Post("/api/auth/login", deps.AuthHandler.Login)

	// Promo validation is advisory and stateless per caller.
	r.Post("/api/promo/validate", deps.PromoHandler.Validate)

	identified := r.Group(deps.Identity)

	// Cart
	identified.Get("/api/cart", deps.CartHandler.Get)
	identified.Post("/api/cart/add", deps.CartHandler.Add)
	identified.Put("/api/cart/update", deps.CartHandler.Update)
	identified.Delete("/api/cart/remove", deps.CartHandler.Remove)
	identified.Delete("/api/cart/clear", deps.CartHandler.Clear)
	identified.Post("/api/cart/save-for-later", deps.CartHandler.SaveForLater)
	identified.Post("/api/cart/move-to-cart", deps.CartHandler.MoveToCart)

	// Checkout and orders
	identified.Post("/api/orders", deps.OrderHandler.PlaceOrder)
	identified.Post("/api/orders/create-payment", deps.OrderHandler.CreatePayment)
	identified.Post("/api/orders/verify-payment", deps.OrderHandler.VerifyPayment)
	identified.Post("/api/orders/payment-failed", deps.OrderHandler.PaymentFailed)
	identified.Get("/api/orders", deps.OrderHandler.ListOrders)
	identified.Get("/api/orders/{id}", deps.OrderHandler.GetOrder)
}
