package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/idyWilliams/nadinekollections-sub000/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/paystack/webhook", h.PaystackWebhook)
		r.Get("/products/{id}/availability", h.CheckAvailability)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Optional)

			r.With(h.promoLimiter.Middleware).Post("/promotions/validate", h.ValidatePromotion)

			r.Post("/orders/create", h.CreateOrder)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/payment", h.InitiatePayment)
			r.Post("/orders/{id}/payment-callback", h.PaymentCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/orders", h.GetUserOrders)
			r.Post("/orders/{id}/cancel", h.CancelOrder)

			r.Get("/notifications", h.ListNotifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.RequireAdmin)

			r.Get("/orders", h.ListOrders)
			r.Patch("/orders/{id}/status", h.UpdateOrderStatus)

			r.Get("/promotions", h.ListPromotions)
			r.Post("/promotions", h.CreatePromotion)

			r.Patch("/products/{id}/stock", h.AdjustStock)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
