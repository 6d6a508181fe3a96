package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, auth.DefaultTokenTTL, cfg.TokenTTL)
	assert.Equal(t, auth.DefaultPhoneRegion, cfg.PhoneRegion)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := "DB_DRIVER=postgres\n" +
		"DB_DSN=postgres://localhost/parfumerie\n" +
		"JWT_AUDIENCE=web, admin\n" +
		"ADMIN_EMAIL=admin@esparfumerie.com\n" +
		"ADMIN_TOKEN_TTL=2h\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.env"), []byte(content), 0o600))

	t.Setenv("PARFUMERIE_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PARFUMERIE_LISTEN_ADDR", ":8080")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, ":8080", cfg.ListenAddr)

	opts := cfg.AuthOptions()
	assert.Equal(t, []string{"web", "admin"}, opts.Audience)
	assert.Equal(t, "admin@esparfumerie.com", opts.GetAdminEmail())
	assert.Equal(t, 2*time.Hour, opts.GetAdminTokenTTL())
	assert.NoError(t, auth.ValidateConfig(opts))
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("PARFUMERIE_DB_DRIVER", "mysql")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}
