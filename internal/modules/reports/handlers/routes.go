package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(h.middleware.Authenticate)

		r.Get("/summary", h.HandleSummary)
		r.Get("/distribution", h.HandleDistribution)
		r.Get("/monthly", h.HandleMonthly)
		r.Get("/yearly", h.HandleYearly)
		r.Get("/yoy", h.HandleYearOverYear)
		r.Get("/history", h.HandleHistory)
		r.Get("/{kind}/export", h.HandleExport)
	})
}
