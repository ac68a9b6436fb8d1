// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/portfolios"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service    *portfolios.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolios.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "portfolios").Logger(),
	}
}

// HandleList returns the caller's portfolios; ?archived=true includes archived
// ones and ?summary=true adds aggregated totals.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	archived, err := httputil.QueryBool(r, "archived")
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	withSummary, err := httputil.QueryBool(r, "summary")
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	includeArchived := archived != nil && *archived
	userID := userID(r)

	if withSummary != nil && *withSummary {
		list, err := h.service.Summaries(userID, includeArchived)
		if err != nil {
			httputil.WriteError(w, r, h.log, err)
			return
		}
		httputil.WriteJSON(w, h.log, http.StatusOK, list)
		return
	}

	list, err := h.service.List(userID, includeArchived)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, list)
}

// HandleCreate creates a portfolio
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in portfolios.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	p, err := h.service.Create(userID(r), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusCreated, p)
}

// HandleGet returns one portfolio
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, p)
}

// HandleUpdate updates a portfolio
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in portfolios.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	p, err := h.service.Update(userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, p)
}

// HandleDelete deletes a portfolio
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(userID(r), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleArchive archives a portfolio
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// HandleUnarchive restores an archived portfolio
func (h *Handler) HandleUnarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	p, err := h.service.SetArchived(userID(r), chi.URLParam(r, "id"), archived)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, p)
}

// HandleSummary returns aggregated totals for a portfolio
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, summary)
}

func userID(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.UserID
}
