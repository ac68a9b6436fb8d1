package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.middleware.Authenticate).Get("/portfolios/{id}/snapshots", h.HandleList)
}
