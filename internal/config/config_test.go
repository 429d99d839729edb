package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8000", cfg.Server.Addr())
	assert.Equal(t, "sqlite3", cfg.Database.Build().Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.Interval)
}

func TestMissingSecretKeyFailsValidation(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
}

func TestDeploymentEnvironmentKeys(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("DATABASE_URL", "sqlite:///var/lib/boomsd/booms.db")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	t.Setenv("BASE_URL", "https://api.example.com")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("WAVE_API_KEY", "wv-key")
	t.Setenv("WAVE_WEBHOOK_SECRET", "wv-hook")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL())
	assert.Equal(t, "/var/lib/boomsd/booms.db", cfg.Database.Build().Database)

	providers := cfg.ProviderConfig()
	assert.Equal(t, "wv-key", providers.Wave.APIKey)
	assert.Equal(t, "wv-hook", providers.Wave.WebhookSecret)
	// MTN secrets absent: the provider stays disabled.
	assert.Empty(t, providers.MTN.APIKey)
}

func TestPrefixedEnvOverrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("BOOMSD_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	path := filepath.Join(t.TempDir(), "boomsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
server:
  port: 8443
sweeper:
  interval: 1m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
}

func TestMissingConfigFileErrors(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
