// Package http exposes the checkout engine over a JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Checkouts *CheckoutHandler
	Payments  *PaymentHandler
	Products  *ProductHandler
	Orders    *OrdersHandler
}

// MetricsProvider instruments requests and serves the scrape endpoint.
type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

func NewRouter(h Handlers, m MetricsProvider, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(SessionMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	if m != nil {
		r.Use(m.Middleware)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.Products.SearchProducts)

		r.Route("/checkouts/{checkout_id}", func(r chi.Router) {
			r.Get("/", h.Checkouts.GetCheckout)
			r.Post("/items", h.Checkouts.AddItem)
			r.Put("/items/{product_id}", h.Checkouts.UpdateItem)
			r.Delete("/items/{product_id}", h.Checkouts.RemoveItem)
			r.Put("/customer", h.Checkouts.SetCustomer)
			r.Post("/payment", h.Checkouts.BeginPayment)
			r.Post("/mandate", h.Payments.BuildMandate)
		})

		r.Route("/mandates", func(r chi.Router) {
			r.Post("/", h.Payments.SubmitMandate)
			r.Post("/{mandate_id}/otp", h.Payments.ConfirmOTP)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.ListOrders)
			r.Get("/{order_id}", h.Orders.GetOrder)
		})
	})

	return r
}
