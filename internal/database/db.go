// Package database opens the SQLite files folio keeps and applies their schemas.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schemas/*.sql
var schemas embed.FS

// schemaFiles maps database names to their embedded schema files
var schemaFiles = map[string]string{
	"folio": "folio_schema.sql",
	"cache": "cache_schema.sql",
}

// DatabaseProfile selects durability and pooling settings
type DatabaseProfile string

const (
	// ProfileLedger trades write speed for durability (users, portfolios, transactions)
	ProfileLedger DatabaseProfile = "ledger"
	// ProfileCache favours speed; contents can be rebuilt
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard sits between the two
	ProfileStandard DatabaseProfile = "standard"
)

type profileSettings struct {
	pragmas  []string
	maxOpen  int
	maxIdle  int
	idleTime time.Duration
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileLedger: {
		pragmas:  []string{"synchronous(FULL)", "auto_vacuum(NONE)"},
		maxOpen:  25,
		maxIdle:  5,
		idleTime: 30 * time.Minute,
	},
	ProfileCache: {
		pragmas:  []string{"synchronous(OFF)", "auto_vacuum(FULL)", "temp_store(MEMORY)"},
		maxOpen:  10,
		maxIdle:  2,
		idleTime: 10 * time.Minute,
	},
	ProfileStandard: {
		pragmas:  []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)", "temp_store(MEMORY)"},
		maxOpen:  25,
		maxIdle:  5,
		idleTime: 30 * time.Minute,
	},
}

// Applied to every connection regardless of profile.
var commonPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"wal_autocheckpoint(1000)",
	"cache_size(-32000)",
}

// DB is an open SQLite database with its name and file path
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config holds database configuration
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string // "folio" or "cache"; also selects the embedded schema
}

// New opens the database at cfg.Path, creating its directory when needed.
// Paths starting with "file:" are passed to the driver untouched.
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q", cfg.Profile)
	}

	if !strings.HasPrefix(cfg.Path, "file:") {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path %s: %w", cfg.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		cfg.Path = abs
	}

	conn, err := sql.Open("sqlite", dsn(cfg.Path, settings.pragmas))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpen)
	conn.SetMaxIdleConns(settings.maxIdle)
	conn.SetConnMaxIdleTime(settings.idleTime)
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func dsn(path string, pragmas []string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(path)
	for _, p := range append(append([]string{}, commonPragmas...), pragmas...) {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection pool used by repositories
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate applies the embedded schema for this database. Schemas only use
// CREATE ... IF NOT EXISTS, so Migrate runs on every startup.
func (db *DB) Migrate() error {
	file, ok := schemaFiles[db.name]
	if !ok {
		return nil
	}

	content, err := schemas.ReadFile("schemas/" + file)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", file, err)
	}

	return WithTransaction(db.conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to apply schema %s to %s: %w", file, db.name, err)
		}
		return nil
	})
}
