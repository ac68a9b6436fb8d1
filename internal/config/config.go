// Package config provides configuration management functionality.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// minJWTSecretLength is the minimum HMAC key size accepted outside dev mode.
const minJWTSecretLength = 32

// Config holds application configuration
type Config struct {
	DataDir   string `env:"FOLIO_DATA_DIR" envDefault:"./data"` // Base directory for all databases (always absolute after Load)
	Port      int    `env:"FOLIO_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
	DevMode   bool   `env:"DEV_MODE" envDefault:"false"`
	Version   string `env:"VERSION" envDefault:"dev"`

	JWTSecret string        `env:"FOLIO_JWT_SECRET"`
	JWTIssuer string        `env:"FOLIO_JWT_ISSUER" envDefault:"folio"`
	TokenTTL  time.Duration `env:"FOLIO_TOKEN_TTL" envDefault:"24h"`

	// Bootstrap administrator, created on startup when both are set and no such user exists.
	AdminEmail    string `env:"FOLIO_ADMIN_EMAIL"`
	AdminUsername string `env:"FOLIO_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"FOLIO_ADMIN_PASSWORD"`

	AllowRegistration bool     `env:"FOLIO_ALLOW_REGISTRATION" envDefault:"true"`
	StaticDir         string   `env:"FOLIO_STATIC_DIR"`
	CORSOrigins       []string `env:"FOLIO_CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	SnapshotSchedule    string        `env:"FOLIO_SNAPSHOT_SCHEDULE" envDefault:"0 55 23 * * *"`
	MaintenanceSchedule string        `env:"FOLIO_MAINTENANCE_SCHEDULE" envDefault:"0 30 3 * * *"`
	ReportCacheTTL      time.Duration `env:"FOLIO_REPORT_CACHE_TTL" envDefault:"5m"`
	ActivityRetention   time.Duration `env:"FOLIO_ACTIVITY_RETENTION" envDefault:"8760h"` // 0 keeps activity forever

	Backup BackupConfig `envPrefix:"FOLIO_BACKUP_"`

	// GeneratedSecret is true when JWTSecret was generated because none was configured (dev mode only).
	GeneratedSecret bool `env:"-"`
}

// BackupConfig holds off-site backup configuration.
// S3 upload is enabled when Bucket is set; local archives are always kept under DataDir/backups.
type BackupConfig struct {
	Schedule        string `env:"SCHEDULE"` // empty disables scheduled backups
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION" envDefault:"auto"`
	Endpoint        string `env:"S3_ENDPOINT"` // S3-compatible endpoint (R2, MinIO)
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	Prefix          string `env:"S3_PREFIX" envDefault:"folio-backups/"`
	Retention       int    `env:"RETENTION" envDefault:"14"`
}

// S3Enabled reports whether backups should be uploaded to object storage.
func (b BackupConfig) S3Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return load(false)
}

// LoadForTooling reads configuration for offline commands that never issue
// tokens. A missing JWT secret is replaced with a random one.
func LoadForTooling() (*Config, error) {
	return load(true)
}

func load(allowMissingSecret bool) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.resolveDataDir(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" && (cfg.DevMode || allowMissingSecret) {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("FOLIO_JWT_SECRET is required")
	}
	if !c.DevMode && len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("FOLIO_JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("FOLIO_TOKEN_TTL must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("FOLIO_ADMIN_EMAIL and FOLIO_ADMIN_PASSWORD must be set together")
	}
	if c.Backup.S3Enabled() && (c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("S3 backups require FOLIO_BACKUP_S3_ACCESS_KEY_ID and FOLIO_BACKUP_S3_SECRET_ACCESS_KEY")
	}
	if c.Backup.Retention < 1 {
		return fmt.Errorf("FOLIO_BACKUP_RETENTION must be at least 1")
	}
	return nil
}

// DatabasePath returns the absolute path of a named database file in DataDir.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// BackupDir returns the directory used for local backup archives.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

func (c *Config) resolveDataDir() error {
	dataDir := strings.TrimSpace(c.DataDir)
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	c.DataDir = absDataDir
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, minJWTSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
