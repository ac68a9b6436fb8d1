// Package handlers provides admin HTTP handlers for background jobs.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles job HTTP requests
type Handler struct {
	scheduler  *scheduler.Scheduler
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new job handler
func NewHandler(s *scheduler.Scheduler, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		scheduler:  s,
		middleware: middleware,
		log:        log.With().Str("handler", "jobs").Logger(),
	}
}

// RegisterRoutes registers job routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate, h.middleware.RequireAdmin)

		r.Get("/admin/jobs", h.HandleList)
		r.Post("/admin/jobs/{name}", h.HandleRun)
	})
}

// HandleList handles GET /api/admin/jobs
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, h.log, http.StatusOK, h.scheduler.Jobs())
}

// HandleRun handles POST /api/admin/jobs/{name}. The job runs synchronously.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	start := time.Now()

	err := h.scheduler.RunNow(name)
	if errors.Is(err, scheduler.ErrUnknownJob) {
		httputil.WriteMessage(w, h.log, http.StatusNotFound, "unknown job: "+name)
		return
	}
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
