// Package handler exposes the HTTP API. Handlers decode requests, delegate to
// the domain services, and map domain errors to status codes.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/bazarko/marketplace-api/internal/domain/analytics"
	"github.com/bazarko/marketplace-api/internal/domain/order"
	"github.com/bazarko/marketplace-api/internal/domain/product"
)

// Handler holds the domain dependencies of the HTTP API.
type Handler struct {
	products  product.Repository
	orders    *order.Service
	analytics *analytics.Service
	security  *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	orders *order.Service,
	analytics *analytics.Service,
	security *Security,
) *Handler {
	return &Handler{
		products:  products,
		orders:    orders,
		analytics: analytics,
		security:  security,
	}
}

// Routes returns the API router. Every route requires an authenticated API
// key; role checks happen in the domain services.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.security.Authenticate)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Patch("/{orderID}/status", h.updateOrderStatus)
		r.Post("/{orderID}/cancel", h.cancelOrder)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{productID}", h.getProduct)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/revenue", h.revenue)
		r.Get("/revenue/daily", h.dailyRevenue)
		r.Get("/orders/status", h.statusBreakdown)
		r.Get("/dashboard", h.dashboard)
	})

	return r
}
