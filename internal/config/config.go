package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string

	// DatabaseURL selects PostgreSQL when it is a postgres:// URL. When empty,
	// a SQLite database is kept under InstancePath.
	DatabaseURL  string
	InstancePath string

	// APIKey is the shared key gating every route. If empty, routes are open.
	APIKey string

	// SentryDSN enables error reporting when set.
	SentryDSN string

	LogLevel string

	// CleanupOnStart removes dangling sessions and events before serving.
	CleanupOnStart bool
}

// Load reads configuration from environment variables and applies defaults.
// It fails when a boolean variable is set to something unparseable.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     getenv("MICROTICKS_LISTEN_ADDR", ":5000"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("MICROTICKS_DATABASE_URL")),
		InstancePath:   getenv("MICROTICKS_INSTANCE_PATH", "instance"),
		APIKey:         os.Getenv("MICROTICKS_KEY"),
		SentryDSN:      os.Getenv("MICROTICKS_SENTRY_DSN"),
		LogLevel:       getenv("MICROTICKS_LOG_LEVEL", getenv("FLASK_LOG_LEVEL", "info")),
		CleanupOnStart: true,
	}

	if v := os.Getenv("MICROTICKS_CLEANUP_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MICROTICKS_CLEANUP_ON_START: invalid boolean %q", v)
		}
		cfg.CleanupOnStart = b
	}

	return cfg, nil
}

// SQLitePath is the database file used when no DatabaseURL is configured.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.InstancePath, "microticks.db")
}

// UsesPostgres reports whether DatabaseURL points at a PostgreSQL server.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
