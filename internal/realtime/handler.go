package realtime

import (
	"net/http"

	"github.com/aristath/folio/internal/modules/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Handler upgrades authenticated requests to websocket connections on the hub.
type Handler struct {
	hub            *Hub
	middleware     *auth.Middleware
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates a new websocket handler. originPatterns lists extra
// allowed browser origins (host patterns) besides the request's own host.
func NewHandler(hub *Hub, middleware *auth.Middleware, originPatterns []string, log zerolog.Logger) *Handler {
	return &Handler{
		hub:            hub,
		middleware:     middleware,
		originPatterns: originPatterns,
		log:            log.With().Str("handler", "events_ws").Logger(),
	}
}

// RegisterRoutes registers the websocket route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.middleware.AuthenticateWebsocket).Get("/events/ws", h.ServeHTTP)
}

// ServeHTTP handles GET /api/events/ws. Browsers cannot set headers on
// websocket requests, so the token usually arrives as ?token=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c, ok := h.hub.register(p.UserID, p.IsAdmin())
	if !ok {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	h.log.Info().Str("user_id", p.UserID).Msg("Client connected to event stream")
	h.hub.serve(r.Context(), conn, c)
	h.log.Info().Str("user_id", p.UserID).Msg("Client disconnected from event stream")
}
