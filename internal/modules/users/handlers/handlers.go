// Package handlers provides HTTP handlers for administrator user management.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/users"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles admin user HTTP requests
type Handler struct {
	service    *users.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new users handler
func NewHandler(service *users.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "users").Logger(),
	}
}

// HandleList returns users matching ?search=&role=&active=&limit=&offset=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := httputil.Page(r)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	active, err := httputil.QueryBool(r, "active")
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	filter := users.ListFilter{
		Search: r.URL.Query().Get("search"),
		Role:   domain.Role(r.URL.Query().Get("role")),
		Active: active,
		Limit:  limit,
		Offset: offset,
	}
	if filter.Role != "" && !filter.Role.IsValid() {
		httputil.WriteError(w, r, h.log, domain.NewValidationError("role", "must be user or admin"))
		return
	}

	list, total, err := h.service.List(filter)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, httputil.ListResponse{Items: list, Total: total})
}

// HandleCreate creates a user
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in users.CreateUserInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	u, err := h.service.CreateUser(actorID(r), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusCreated, u)
}

// HandleGet returns a single user
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, u)
}

// HandleUpdate applies partial changes to a user
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in users.UpdateUserInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	u, err := h.service.UpdateUser(actorID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, u)
}

// HandleDelete deletes a user and everything they own
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(actorID(r), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetPassword sets a new password for a user
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	if err := h.service.ResetPassword(actorID(r), chi.URLParam(r, "id"), req.Password); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorID(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.UserID
}
