// Package handlers provides HTTP handlers for reports and exports.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/aristath/folio/internal/httputil"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/reports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles report HTTP requests
type Handler struct {
	service    *reports.Service
	middleware *auth.Middleware
	log        zerolog.Logger
}

// NewHandler creates a new report handler
func NewHandler(service *reports.Service, middleware *auth.Middleware, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		middleware: middleware,
		log:        log.With().Str("handler", "reports").Logger(),
	}
}

// parseQuery reads the shared report parameters.
func parseQuery(r *http.Request) (reports.Query, error) {
	values := r.URL.Query()
	q := reports.Query{
		PortfolioID: values.Get("portfolio_id"),
		From:        values.Get("from"),
		To:          values.Get("to"),
	}
	var err error
	if q.Year, err = httputil.QueryInt(r, "year", 0); err != nil {
		return q, err
	}
	if q.Limit, err = httputil.QueryInt(r, "limit", 0); err != nil {
		return q, err
	}
	if q.SMAPeriod, err = httputil.QueryInt(r, "sma", 0); err != nil {
		return q, err
	}
	return q, nil
}

// serve runs build with the caller's id and query and writes the JSON result.
func serve[T any](h *Handler, w http.ResponseWriter, r *http.Request, build func(userID string, q reports.Query) (T, error)) {
	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	result, err := build(p.UserID, q)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, result)
}

// HandleSummary handles GET /api/reports/summary
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.service.Summary)
}

// HandleDistribution handles GET /api/reports/distribution
func (h *Handler) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.service.Distribution)
}

// HandleMonthly handles GET /api/reports/monthly?year=
func (h *Handler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.service.Monthly)
}

// HandleYearly handles GET /api/reports/yearly
func (h *Handler) HandleYearly(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.service.Yearly)
}

// HandleYearOverYear handles GET /api/reports/yoy?year=
func (h *Handler) HandleYearOverYear(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.service.YearOverYear)
}

// HandleHistory handles GET /api/reports/history?from=&to=&sma=
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	serve(h, w, r, h.service.History)
}

// HandleExport handles GET /api/reports/{kind}/export?format=csv|html
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	format := r.URL.Query().Get("format")

	doc, err := h.service.Export(p.UserID, chi.URLParam(r, "kind"), format, q)
	if err != nil {
		httputil.WriteError(w, r, h.log, err)
		return
	}

	if format == reports.FormatHTML {
		// Rendered inline so the browser can print it.
		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	} else {
		httputil.Attachment(w, doc.ContentType, doc.Filename)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		h.log.Error().Err(err).Msg("Failed to write export")
	}
}
