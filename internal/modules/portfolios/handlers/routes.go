package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)

		r.Get("/portfolios", h.HandleList)
		r.Post("/portfolios", h.HandleCreate)
		r.Get("/portfolios/{id}", h.HandleGet)
		r.Put("/portfolios/{id}", h.HandleUpdate)
		r.Delete("/portfolios/{id}", h.HandleDelete)
		r.Post("/portfolios/{id}/archive", h.HandleArchive)
		r.Post("/portfolios/{id}/unarchive", h.HandleUnarchive)
		r.Get("/portfolios/{id}/summary", h.HandleSummary)
	})
}
