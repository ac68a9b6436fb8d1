package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_FolioSchema(t *testing.T) {
	db := newTestDB(t, "folio", ProfileStandard)
	require.NoError(t, db.Migrate())
	// Migrate is idempotent
	require.NoError(t, db.Migrate())

	for _, table := range []string{"users", "portfolios", "investments", "transactions", "portfolio_snapshots", "activity"} {
		var name string
		err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileCache)
	assert.NoError(t, db.Migrate())
}

func TestForeignKeysEnabled(t *testing.T) {
	db := newTestDB(t, "folio", ProfileStandard)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec(`INSERT INTO portfolios (id, user_id, name, created_at, updated_at)
		VALUES ('p1', 'missing-user', 'Orphan', 0, 0)`)
	assert.Error(t, err, "foreign key to users should be enforced")
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (name) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestBackupTo(t *testing.T) {
	db := newTestDB(t, "folio", ProfileStandard)
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "nested", "copy.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestHealthAndStats(t *testing.T) {
	db := newTestDB(t, "folio", ProfileStandard)
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	assert.NoError(t, db.QuickCheck(ctx))
	assert.NoError(t, db.IntegrityCheck(ctx))

	res, err := db.Checkpoint(ctx)
	require.NoError(t, err)
	assert.False(t, res.Busy)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.SizeBytes, int64(0))
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE u (email TEXT UNIQUE)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO u (email) VALUES ('a@b.c')")
	require.NoError(t, err)

	_, err = db.Conn().Exec("INSERT INTO u (email) VALUES ('a@b.c')")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestNew_UnknownProfile(t *testing.T) {
	_, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Profile: "turbo", Name: "x"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	got := dsn("/data/folio.db", []string{"synchronous(FULL)"})
	assert.True(t, strings.HasPrefix(got, "/data/folio.db?_pragma=journal_mode(WAL)&"))
	assert.True(t, strings.HasSuffix(got, "&_pragma=synchronous(FULL)"))

	got = dsn("file:mem?mode=memory", nil)
	assert.True(t, strings.HasPrefix(got, "file:mem?mode=memory&_pragma="))
}

func TestProfilesApplied(t *testing.T) {
	ledger := newTestDB(t, "folio", ProfileLedger)
	var sync int
	require.NoError(t, ledger.Conn().QueryRow("PRAGMA synchronous").Scan(&sync))
	assert.Equal(t, 2, sync) // FULL

	cache := newTestDB(t, "cache", ProfileCache)
	require.NoError(t, cache.Conn().QueryRow("PRAGMA synchronous").Scan(&sync))
	assert.Equal(t, 0, sync) // OFF

	var fk int
	require.NoError(t, cache.Conn().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
