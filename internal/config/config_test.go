package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("SESSION_TTL_MINUTES", "")
	t.Setenv("STORAGE_TIMEOUT_MS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL())
	assert.Equal(t, 3*time.Second, cfg.Storage.Timeout())
	assert.Equal(t, 2*time.Second, cfg.Storage.LockTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("SESSION_TTL_MINUTES", "15")
	t.Setenv("LOCK_TIMEOUT_MS", "250")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL())
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.LockTimeout())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_SESSION_SECRET", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AUTH_SESSION_SECRET", "a-real-secret")
	_, err = Load()
	assert.NoError(t, err)
}
