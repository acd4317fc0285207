package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so a test starts from a
// known environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "DATABASE_URL",
		"SNAPSHOT_BACKEND", "SNAPSHOT_DIR", "S3_BUCKET_NAME", "S3_ENDPOINT",
		"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
		"FLUSH_INTERVAL_SECONDS", "CONNECT_TIMEOUT_SECONDS", "PAIRING_TIMEOUT_SECONDS",
		"RECONNECT_BACKOFF_SECONDS", "RECONNECT_BACKOFF_MAX_SECONDS", "RECONNECT_MAX_ATTEMPTS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Empty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.Equal(t, SnapshotBackendFS, cfg.SnapshotBackend)
	assert.Equal(t, "./data/snapshots", cfg.SnapshotDir)
	assert.Equal(t, 10*time.Second, cfg.FlushInterval)
	assert.Equal(t, 60*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 180*time.Second, cfg.PairingTimeout)
	assert.Equal(t, 2*time.Second, cfg.ReconnectBackoff)
	assert.Equal(t, 60*time.Second, cfg.ReconnectBackoffMax)
	assert.Equal(t, 0, cfg.ReconnectMaxAttempts)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("FLUSH_INTERVAL_SECONDS", "30")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 5, cfg.ReconnectMaxAttempts)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PORT", "80")
	_, err = LoadConfig()
	assert.Error(t, err, "privileged ports are rejected")
}

func TestLoadConfig_ProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadConfig()
	require.Error(t, err, "JWT_SECRET is mandatory outside development")

	t.Setenv("JWT_SECRET", "secret")
	_, err = LoadConfig()
	require.Error(t, err, "DATABASE_URL is mandatory outside development")

	t.Setenv("DATABASE_URL", "postgres://relay:relay@db:5432/warelay")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadConfig_S3BackendRequiresSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNAPSHOT_BACKEND", SnapshotBackendS3)

	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("S3_BUCKET_NAME", "snapshots")
	t.Setenv("S3_ENDPOINT", "https://s3.example.com")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "snapshots", cfg.S3BucketName)
}

func TestLoadConfig_InvalidSnapshotBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("SNAPSHOT_BACKEND", "tape")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONNECT_TIMEOUT_SECONDS", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}
