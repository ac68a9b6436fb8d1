package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, staticDir string) (*Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir:             t.TempDir(),
		Port:                8080,
		DevMode:             true,
		Version:             "test",
		JWTSecret:           "0123456789abcdef0123456789abcdef",
		JWTIssuer:           "folio",
		TokenTTL:            time.Hour,
		AllowRegistration:   true,
		StaticDir:           staticDir,
		CORSOrigins:         []string{"*"},
		SnapshotSchedule:    "0 55 23 * * *",
		MaintenanceSchedule: "0 30 3 * * *",
		ReportCacheTTL:      time.Minute,
		Backup:              config.BackupConfig{Retention: 3},
	}

	container, _, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	return New(Config{Log: zerolog.Nop(), Config: cfg, Container: container}), container
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doJSON(t, s.Handler(), "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthReportsClosedDatabase(t *testing.T) {
	s, container := newTestServer(t, "")
	require.NoError(t, container.CacheDB.Close())

	rec := doJSON(t, s.Handler(), "GET", "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownAPIRoute(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doJSON(t, s.Handler(), "GET", "/api/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestEndToEndFlow(t *testing.T) {
	s, container := newTestServer(t, "")
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/auth/register", "", map[string]string{
		"email": "alice@example.com", "username": "alice", "password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)

	rec = doJSON(t, h, "POST", "/api/portfolios", session.Token, map[string]string{"name": "Main"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, "GET", "/api/dashboard", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "GET", "/api/reports/summary", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, "GET", "/api/activity", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Regular users cannot reach admin endpoints
	rec = doJSON(t, h, "GET", "/api/system/status", session.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, h, "POST", "/api/admin/jobs/snapshot", session.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin, _, err := container.UserService.EnsureAdmin("root@example.com", "root", "correct-horse-battery")
	require.NoError(t, err)
	adminToken, _, err := container.Tokens.Issue(admin)
	require.NoError(t, err)

	rec = doJSON(t, h, "POST", "/api/admin/jobs/snapshot", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	n, err := container.SnapshotRepo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec = doJSON(t, h, "GET", "/api/system/status", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "test", status.Version)
	assert.Len(t, status.Databases, 2)
	assert.Len(t, status.Jobs, 3)
	require.NotNil(t, status.Backups)
	assert.False(t, status.Backups.RemoteEnabled)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest("OPTIONS", "/api/portfolios", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>folio</html>"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0644))

	s, _ := newTestServer(t, dir)
	h := s.Handler()

	rec := doJSON(t, h, "GET", "/portfolios/123", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "folio")

	rec = doJSON(t, h, "GET", "/assets/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	// API misses never fall through to the app
	rec = doJSON(t, h, "GET", "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
