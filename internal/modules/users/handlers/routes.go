package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers admin user management routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(h.middleware.Authenticate)
		r.Use(h.middleware.RequireAdmin)

		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/reset-password", h.HandleResetPassword)
	})
}
