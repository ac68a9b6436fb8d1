// Package handlers provides HTTP handlers for dashboards.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/dashboard"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles dashboard HTTP requests
type Handler struct {
	service    *dashboard.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new dashboard handler
func NewHandler(service *dashboard.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "dashboard").Logger(),
	}
}

// RegisterRoutes registers dashboard routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)

		r.Get("/dashboard", h.HandleUser)
		r.With(h.middleware.RequireAdmin).Get("/admin/dashboard", h.HandleAdmin)
	})
}

// HandleUser handles GET /api/dashboard
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	d, err := h.service.ForUser(p.UserID)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, d)
}

// HandleAdmin handles GET /api/admin/dashboard
func (h *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.ForAdmin()
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, d)
}
