// Package handlers provides admin HTTP handlers for backups.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/reliability"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles backup HTTP requests
type Handler struct {
	backups    *reliability.BackupService
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new backup handler
func NewHandler(backups *reliability.BackupService, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		backups:    backups,
		middleware: middleware,
		log:        log.With().Str("handler", "backups").Logger(),
	}
}

// RegisterRoutes registers backup routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate, h.middleware.RequireAdmin)

		r.Get("/admin/backups", h.HandleList)
		r.Post("/admin/backups", h.HandleCreate)
	})
}

// HandleList handles GET /api/admin/backups
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	listing, err := h.backups.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, listing)
}

// HandleCreate handles POST /api/admin/backups
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	info, err := h.backups.Create(r.Context())
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusCreated, info)
}
