// Package config loads the API's runtime settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
)

var (
	ErrMissingSecret      = errors.New("JWT_SECRET is required")
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
)

const DefaultTokenTTL = 7 * 24 * time.Hour

type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret string
	TokenTTL  time.Duration

	DBMaxOpen     int
	DBMaxIdle     int
	DBMaxLifetime time.Duration
	AutoMigrate   bool

	// RedisURL enables the token revocation set when non-empty.
	RedisURL string
	// AdminEmail, when set, is the one address that registers as admin.
	AdminEmail string

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from an arbitrary key lookup and validates it.
func FromLookup(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	ttl, err := ParseTTL(get("JWT_EXPIRE", "7d"))
	if err != nil {
		return nil, apperrors.Configuration("invalid JWT_EXPIRE", err)
	}

	maxOpen, err := strconv.Atoi(get("DB_MAX_OPEN", "25"))
	if err != nil {
		return nil, apperrors.Configuration("invalid DB_MAX_OPEN", err)
	}
	maxIdle, err := strconv.Atoi(get("DB_MAX_IDLE", "25"))
	if err != nil {
		return nil, apperrors.Configuration("invalid DB_MAX_IDLE", err)
	}
	lifetime, err := strconv.Atoi(get("DB_MAX_LIFETIME", "300")) // seconds
	if err != nil {
		return nil, apperrors.Configuration("invalid DB_MAX_LIFETIME", err)
	}
	autoMigrate, err := strconv.ParseBool(get("AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, apperrors.Configuration("invalid AUTO_MIGRATE", err)
	}

	cfg := &Config{
		Port:          get("PORT", "5000"),
		DatabaseURL:   get("DATABASE_URL", ""),
		JWTSecret:     getenv("JWT_SECRET"),
		TokenTTL:      ttl,
		DBMaxOpen:     maxOpen,
		DBMaxIdle:     maxIdle,
		DBMaxLifetime: time.Duration(lifetime) * time.Second,
		AutoMigrate:   autoMigrate,
		RedisURL:      get("REDIS_URL", ""),
		AdminEmail:    strings.ToLower(get("ADMIN_EMAIL", "")),
		LogLevel:      get("LOG_LEVEL", "info"),
		LogFormat:     get("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return apperrors.Configuration("missing signing secret", ErrMissingSecret)
	}
	if c.DatabaseURL == "" {
		return apperrors.Configuration("missing database url", ErrMissingDatabaseURL)
	}
	if c.TokenTTL <= 0 {
		return apperrors.Configuration("invalid token lifetime", fmt.Errorf("JWT_EXPIRE must be positive, got %s", c.TokenTTL))
	}
	return nil
}

// ParseTTL parses lifetimes such as "7d", "12h", "15m", "20s" or "30"
// (bare integers are minutes).
func ParseTTL(ttl string) (time.Duration, error) {
	ttl = strings.TrimSpace(ttl)
	if ttl == "" {
		return DefaultTokenTTL, nil
	}

	if days, ok := strings.CutSuffix(ttl, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("parse ttl %q: %w", ttl, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	if strings.HasSuffix(ttl, "h") ||
		strings.HasSuffix(ttl, "m") ||
		strings.HasSuffix(ttl, "s") {
		return time.ParseDuration(ttl)
	}

	// fallback: minutes
	min, err := strconv.Atoi(ttl)
	if err != nil {
		return 0, fmt.Errorf("parse ttl %q: %w", ttl, err)
	}
	return time.Duration(min) * time.Minute, nil
}
