package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all auth routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.middleware.Authenticate)
			r.Get("/me", h.HandleMe)
			r.Put("/password", h.HandleChangePassword)
			r.Post("/refresh", h.HandleRefresh)
		})
	})
}
