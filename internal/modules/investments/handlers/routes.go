package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all investment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)

		// Portfolio-scoped
		r.Get("/portfolios/{id}/investments", h.HandleList)
		r.Post("/portfolios/{id}/investments", h.HandleCreate)
		r.Put("/portfolios/{id}/prices", h.HandleUpdatePrices)

		r.Get("/investments/{id}", h.HandleGet)
		r.Put("/investments/{id}", h.HandleUpdate)
		r.Delete("/investments/{id}", h.HandleDelete)
		r.Put("/investments/{id}/price", h.HandleUpdatePrice)
	})
}
