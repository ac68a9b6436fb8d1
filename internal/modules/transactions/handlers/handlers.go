// Package handlers provides HTTP handlers for transactions.
package handlers

import (
	"net/http"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/transactions"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles transaction HTTP requests
type Handler struct {
	service    *transactions.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(service *transactions.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "transactions").Logger(),
	}
}

// HandleList returns the caller's transactions.
// Filters: portfolio_id, investment_id, type, from, to, limit, offset.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := httputil.Page(r)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	q := r.URL.Query()
	filter := ledger.Filter{
		PortfolioID:  q.Get("portfolio_id"),
		InvestmentID: q.Get("investment_id"),
		Type:         domain.TransactionType(q.Get("type")),
		From:         q.Get("from"),
		To:           q.Get("to"),
		Limit:        limit,
		Offset:       offset,
	}

	entries, total, err := h.service.List(userID(r), filter)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, httputil.ListResponse{Items: entries, Total: total})
}

// HandleListForInvestment returns an investment's transactions
func (h *Handler) HandleListForInvestment(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListForInvestment(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, entries)
}

// HandleCreate records a transaction against an investment
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in transactions.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	entry, err := h.service.Create(userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusCreated, entry)
}

// HandleGet returns one transaction
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, entry)
}

// HandleUpdate updates a transaction
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in transactions.UpdateInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	entry, err := h.service.Update(userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, entry)
}

// HandleDelete deletes a transaction
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(userID(r), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userID(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.UserID
}
