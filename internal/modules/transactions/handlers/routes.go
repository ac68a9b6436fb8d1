package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all transaction routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)

		r.Get("/investments/{id}/transactions", h.HandleListForInvestment)
		r.Post("/investments/{id}/transactions", h.HandleCreate)

		r.Get("/transactions", h.HandleList)
		r.Get("/transactions/{id}", h.HandleGet)
		r.Put("/transactions/{id}", h.HandleUpdate)
		r.Delete("/transactions/{id}", h.HandleDelete)
	})
}
