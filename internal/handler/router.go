package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/samshop/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))
	if h.metrics != nil {
		r.Use(custommiddleware.Metrics(h.metrics))
		r.Handle("/metrics", h.metrics.Handler())
	}

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)

		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)

		r.Post("/checkout", h.CreateCheckout)
		r.Get("/checkout/{id}", h.GetCheckout)
		r.Post("/checkout/{id}/cancel", h.CancelCheckout)

		r.Post("/payment", h.CreatePayment)
		r.Get("/payment/status/{externalID}", h.GetPaymentStatus)

		r.Get("/webhook", h.WebhookInfo)
		r.With(custommiddleware.CallbackAuth(h.webhookToken, h.logger)).Post("/webhook", h.Webhook)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
