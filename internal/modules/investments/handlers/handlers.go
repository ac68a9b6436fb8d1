// Package handlers provides HTTP handlers for investments and prices.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/investments"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles investment HTTP requests
type Handler struct {
	service    *investments.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new investment handler
func NewHandler(service *investments.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "investments").Logger(),
	}
}

// HandleList returns the investments of a portfolio
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, list)
}

// HandleCreate adds an investment to a portfolio
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in investments.CreateInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	view, err := h.service.Create(userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusCreated, view)
}

// HandleGet returns one investment
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, view)
}

// HandleUpdate updates descriptive fields of an investment
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in investments.UpdateInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	view, err := h.service.Update(userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, view)
}

// HandleDelete deletes an investment
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(userID(r), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdatePrice sets the current price of an investment
func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price *float64 `json:"price"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	if req.Price == nil {
		httputil.WriteMessage(w, h.log, http.StatusBadRequest, "price is required")
		return
	}

	view, err := h.service.UpdatePrice(userID(r), chi.URLParam(r, "id"), *req.Price)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, view)
}

// HandleUpdatePrices sets prices by symbol across a portfolio
func (h *Handler) HandleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	result, err := h.service.UpdatePrices(userID(r), chi.URLParam(r, "id"), req.Prices)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	h.log.Debug().Int("updated", result.Updated).Strs("unknown", result.Unknown).Msg("Bulk price update")
	httputil.WriteJSON(w, h.log, http.StatusOK, result)
}

func userID(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.UserID
}
