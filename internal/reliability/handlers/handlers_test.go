package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/auth"
	"github.com/aristath/folio/internal/reliability"
	testingpkg "github.com/aristath/folio/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestBackupEndpoints(t *testing.T) {
	log := zerolog.Nop()
	db, _ := testingpkg.NewTestDB(t, "folio")
	backups := reliability.NewBackupService(
		[]*database.DB{db}, filepath.Join(t.TempDir(), "backups"), nil, 5, "test", nil, log,
	)

	tokens := auth.NewTokenService(testSecret, "folio", time.Hour)
	router := chi.NewRouter()
	NewHandler(backups, auth.NewMiddleware(tokens, nil, log), log).RegisterRoutes(router)

	issue := func(role domain.Role) string {
		tok, _, err := tokens.Issue(&domain.User{ID: "u-1", Email: "a@example.com", Role: role})
		require.NoError(t, err)
		return tok
	}
	do := func(method, tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/admin/backups", nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("GET", "").Code)
	assert.Equal(t, http.StatusForbidden, do("POST", issue(domain.RoleUser)).Code)

	admin := issue(domain.RoleAdmin)
	rec := do("POST", admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created reliability.BackupInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Contains(t, created.Filename, "folio-backup-")
	assert.False(t, created.Uploaded)

	rec = do("GET", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing reliability.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Local, 1)
	assert.Equal(t, created.Filename, listing.Local[0].Filename)
	assert.False(t, listing.RemoteEnabled)
}
