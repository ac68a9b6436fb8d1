package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/httputil"
	"github.com/rs/zerolog"
)

type contextKey struct{}

// Principal identifies the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   domain.Role
}

// IsAdmin reports whether the caller has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// UserLookup resolves the account behind a token so deactivated or deleted
// users lose access before their token expires.
type UserLookup interface {
	GetByID(id string) (*domain.User, error)
}

// Middleware authenticates requests using bearer tokens.
type Middleware struct {
	tokens *TokenService
	users  UserLookup
	log    zerolog.Logger
}

// NewMiddleware creates the authentication middleware. users may be nil, in
// which case token claims are trusted as-is.
func NewMiddleware(tokens *TokenService, users UserLookup, log zerolog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		users:  users,
		log:    log.With().Str("component", "auth_middleware").Logger(),
	}
}

// Authenticate rejects requests without a valid bearer token in the
// Authorization header.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return m.authenticate(next, false)
}

// AuthenticateWebsocket is Authenticate for websocket upgrades. Browsers cannot
// set headers on those requests, so the "token" query parameter is accepted
// when no Authorization header is present.
func (m *Middleware) AuthenticateWebsocket(next http.Handler) http.Handler {
	return m.authenticate(next, true)
}

func (m *Middleware) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r, allowQuery)
		if token == "" {
			httputil.WriteMessage(w, m.log, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			httputil.WriteMessage(w, m.log, http.StatusUnauthorized, err.Error())
			return
		}

		p := Principal{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
		if m.users != nil {
			u, err := m.users.GetByID(claims.Subject)
			if err != nil || !u.IsActive {
				httputil.WriteMessage(w, m.log, http.StatusUnauthorized, "account is not active")
				return
			}
			p.Email = u.Email
			p.Role = u.Role
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin must run after Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			httputil.WriteMessage(w, m.log, http.StatusUnauthorized, "authentication required")
			return
		}
		if !p.IsAdmin() {
			httputil.WriteMessage(w, m.log, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if !allowQuery {
		return ""
	}
	return r.URL.Query().Get("token")
}
