package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	ServiceName        string
}

type Services struct {
	Session  Session
	Catalog  Catalog
	Cart     Cart
	Wishlist Wishlist
	Checkout Checkout
	Orders   Orders
}

// NewRouter mounts the storefront under /api/v1.
func NewRouter(cfg RouterConfig, svc Services, log *slog.Logger) http.Handler {
	sessionHandler := NewSessionHandler(svc.Session, cfg.RequestTimeout)
	productHandler := NewProductHandler(svc.Catalog, cfg.RequestTimeout)
	cartHandler := NewCartHandler(svc.Cart, cfg.RequestTimeout)
	wishlistHandler := NewWishlistHandler(svc.Wishlist, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(svc.Orders, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodyMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
			r.Post("/logout", sessionHandler.Logout)
			r.Put("/profile", sessionHandler.UpdateProfile)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/categories", productHandler.Categories)
			r.Get("/{product_id}", productHandler.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.Get)
			r.Delete("/", wishlistHandler.Clear)
			r.Post("/items", wishlistHandler.AddItem)
			r.Delete("/items/{product_id}", wishlistHandler.RemoveItem)
			r.Post("/move-to-cart", wishlistHandler.MoveToCart)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.Begin)
			r.Route("/{checkout_id}", func(r chi.Router) {
				r.Get("/", checkoutHandler.Get)
				r.Delete("/", checkoutHandler.Abort)
				r.Post("/shipping", checkoutHandler.SubmitShipping)
				r.Post("/payment-method", checkoutHandler.SubmitPaymentMethod)
				r.Post("/back", checkoutHandler.Back)
				r.Get("/gateway-options", checkoutHandler.GatewayOptions)
				r.Post("/complete", checkoutHandler.Complete)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.List)
			r.Get("/{order_id}", ordersHandler.Get)
			r.Post("/{order_id}/cancel", ordersHandler.Cancel)
		})

		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.AdminList)
			r.Put("/{order_id}/status", ordersHandler.AdminUpdateStatus)
		})

		r.Route("/admin/products", func(r chi.Router) {
			r.Post("/", productHandler.Create)
			r.Put("/{product_id}", productHandler.Update)
			r.Delete("/{product_id}", productHandler.Delete)
		})

		r.Get("/payments/{payment_id}/status", ordersHandler.PaymentStatus)
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
