// Package testing provides testing utilities and helpers shared by package tests.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/folio/internal/database"
)

// NewTestDB creates a temporary file-backed SQLite database with the embedded schema
// for name applied ("folio" or "cache"; unknown names get an empty database).
// The database is closed automatically when the test finishes; the returned cleanup
// function may also be called early and is idempotent.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db := openTestDB(t, name)
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, closer(t, db)
}

func openTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	// One file per test keeps tests isolated and lets every pooled connection see the same data.
	path := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))
	profile := database.ProfileStandard
	if name == "cache" {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    path,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	return db
}

func closer(t *testing.T, db *database.DB) func() {
	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", db.Name(), err)
		}
	}
	t.Cleanup(cleanup)
	return cleanup
}
