// Package handlers provides HTTP handlers for authentication.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/rs/zerolog"
)

// Handler handles auth HTTP requests
type Handler struct {
	service    *auth.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *auth.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "auth").Logger(),
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleRegister creates an account and returns a session
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	session, err := h.service.Register(req.Email, req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusCreated, session)
}

// HandleLogin authenticates by email or username
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}

	session, err := h.service.Login(identifier, req.Password)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, session)
}

// HandleMe returns the authenticated user
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	u, err := h.service.Me(p.UserID)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, u)
}

// HandleChangePassword changes the caller's password
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	p, _ := auth.PrincipalFrom(r.Context())
	if err := h.service.ChangePassword(p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh re-issues a token for the caller
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	session, err := h.service.Refresh(p.UserID)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, session)
}
