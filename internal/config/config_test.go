package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
)

func lookup(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookup(map[string]string{
		"JWT_SECRET":   "s3cr3t",
		"DATABASE_URL": "postgres://localhost/app",
	}))
	require.NoError(t, err)

	require.Equal(t, "5000", cfg.Port)
	require.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	require.Equal(t, 25, cfg.DBMaxOpen)
	require.Equal(t, 25, cfg.DBMaxIdle)
	require.Equal(t, 300*time.Second, cfg.DBMaxLifetime)
	require.True(t, cfg.AutoMigrate)
	require.Empty(t, cfg.RedisURL)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestFromLookup_MissingSecretIsConfigurationFailure(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{
		"DATABASE_URL": "postgres://localhost/app",
	}))
	require.ErrorIs(t, err, ErrMissingSecret)
	require.True(t, apperrors.Is(err, apperrors.KindConfiguration))
}

func TestFromLookup_BlankSecretRejected(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{
		"JWT_SECRET":   "   ",
		"DATABASE_URL": "postgres://localhost/app",
	}))
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestFromLookup_MissingDatabaseURL(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{"JWT_SECRET": "x"}))
	require.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookup(map[string]string{
		"JWT_SECRET":      "x",
		"DATABASE_URL":    "postgres://localhost/app",
		"PORT":            "8080",
		"JWT_EXPIRE":      "12h",
		"DB_MAX_LIFETIME": "60",
		"AUTO_MIGRATE":    "false",
		"REDIS_URL":       "redis://localhost:6379/0",
		"ADMIN_EMAIL":     "Root@Example.com",
	}))
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 12*time.Hour, cfg.TokenTTL)
	require.Equal(t, time.Minute, cfg.DBMaxLifetime)
	require.False(t, cfg.AutoMigrate)
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	require.Equal(t, "root@example.com", cfg.AdminEmail)
}

func TestFromLookup_BadValues(t *testing.T) {
	base := map[string]string{"JWT_SECRET": "x", "DATABASE_URL": "postgres://localhost/app"}
	for _, key := range []string{"JWT_EXPIRE", "DB_MAX_OPEN", "DB_MAX_IDLE", "DB_MAX_LIFETIME", "AUTO_MIGRATE"} {
		t.Run(key, func(t *testing.T) {
			env := map[string]string{}
			for k, v := range base {
				env[k] = v
			}
			env[key] = "nope"

			_, err := FromLookup(lookup(env))
			require.True(t, apperrors.Is(err, apperrors.KindConfiguration), "got %v", err)
		})
	}
}

func TestFromLookup_NonPositiveTTL(t *testing.T) {
	_, err := FromLookup(lookup(map[string]string{
		"JWT_SECRET":   "x",
		"DATABASE_URL": "postgres://localhost/app",
		"JWT_EXPIRE":   "0d",
	}))
	require.True(t, apperrors.Is(err, apperrors.KindConfiguration))
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", DefaultTokenTTL},
		{"7d", 7 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"15m", 15 * time.Minute},
		{"20s", 20 * time.Second},
		{"30", 30 * time.Minute},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTTL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := ParseTTL("xd")
	require.Error(t, err)
	_, err = ParseTTL("week")
	require.Error(t, err)
}
