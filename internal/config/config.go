// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables; env-default tags
// apply when a variable is not set.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string `env:"PORT" env-default:"8080"`

	// LogLevel controls the minimum log level: debug, info, warn or error.
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	// CORSOrigins is the comma-separated list of allowed browser origins.
	// The default is the Vite dev server.
	CORSOrigins []string `env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`

	// StoreDriver selects the durable store: sqlite (single-device, the
	// default) or postgres.
	StoreDriver string `env:"STORE_DRIVER" env-default:"sqlite"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `env:"SQLITE_PATH" env-default:"wines.db"`

	// DatabaseURL is the Postgres connection string. Required by the
	// postgres driver.
	DatabaseURL string `env:"DATABASE_URL"`

	// PhotosDir is the directory wine photos are stored in.
	PhotosDir string `env:"PHOTOS_DIR" env-default:"photos"`

	// MaxBodyBytes caps request bodies, photo uploads included.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" env-default:"10485760"`
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error naming the offending variable when a value is invalid or
// a required variable is not set.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks the cross-field rules env tags cannot express.
func (c Config) Validate() error {
	var missing []string

	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.StoreDriver)
	}

	if c.PhotosDir == "" {
		missing = append(missing, "PHOTOS_DIR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}

// trimAll trims each entry and drops empty ones.
func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
