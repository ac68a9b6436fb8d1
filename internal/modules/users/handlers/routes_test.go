package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/events"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/modules/users"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router     chi.Router
	service    *users.Service
	adminToken string
	userToken  string
	admin      *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, _ := testingpkg.NewTestDB(t, "folio")
	manager := events.NewManager(events.NewBus(zerolog.Nop()), zerolog.Nop())
	repo := users.NewRepository(db.Conn(), zerolog.Nop())
	service := users.NewService(repo, manager, zerolog.Nop())
	tokens := auth.NewTokenService("0123456789abcdef0123456789abcdef", "folio", time.Hour)

	admin, _, err := service.EnsureAdmin("root@example.com", "root", "rootpass1")
	require.NoError(t, err)
	user, err := service.CreateUser("", users.CreateUserInput{Email: "u@example.com", Username: "plain", Password: "userpass1"})
	require.NoError(t, err)

	adminToken, _, err := tokens.Issue(admin)
	require.NoError(t, err)
	userToken, _, err := tokens.Issue(user)
	require.NoError(t, err)

	router := chi.NewRouter()
	NewHandler(service, auth.NewMiddleware(tokens, repo, zerolog.Nop()), zerolog.Nop()).RegisterRoutes(router)

	return &fixture{router: router, service: service, adminToken: adminToken, userToken: userToken, admin: admin}
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterRoutes(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/admin/users/"},
		{"POST", "/admin/users/"},
		{"GET", "/admin/users/some-id"},
		{"PUT", "/admin/users/some-id"},
		{"DELETE", "/admin/users/some-id"},
		{"POST", "/admin/users/some-id/reset-password"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "route should exist and require auth")
		})
	}
}

func TestNonAdminForbidden(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/admin/users/", f.userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminUserLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/admin/users/", f.adminToken, map[string]interface{}{
		"email": "new@example.com", "username": "newbie", "password": "newbie123", "role": "user",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = f.do(t, "GET", "/admin/users/?search=newb", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []domain.User `json:"items"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Total)

	rec = f.do(t, "PUT", "/admin/users/"+created.ID, f.adminToken, map[string]interface{}{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated domain.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.False(t, updated.IsActive)

	rec = f.do(t, "POST", "/admin/users/"+created.ID+"/reset-password", f.adminToken, map[string]string{"password": "fresh1234"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "DELETE", "/admin/users/"+created.ID, f.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "GET", "/admin/users/"+created.ID, f.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "DELETE", "/admin/users/"+f.admin.ID, f.adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListRejectsBadFilters(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/admin/users/?role=root", f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "GET", "/admin/users/?active=maybe", f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
