// Package handlers provides HTTP handlers for the activity feed.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/activity"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles activity HTTP requests
type Handler struct {
	repo       *activity.Repository
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new activity handler
func NewHandler(repo *activity.Repository, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		middleware: middleware,
		log:        log.With().Str("handler", "activity").Logger(),
	}
}

// RegisterRoutes registers activity routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.middleware.Authenticate).Get("/activity", h.HandleList)
}

// HandleList handles GET /api/activity?limit=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	entries, err := h.repo.ListForUser(p.UserID, limit)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, entries)
}
