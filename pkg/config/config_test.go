package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-access-secret-0123456789"
	testRefreshSecret = "refresh-secret-refresh-secret-0123456789"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BACKOFFICE_DATABASE_URL", "postgres://localhost/backoffice?sslmode=disable")
	t.Setenv("BACKOFFICE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BACKOFFICE_JWT_ACCESS_SECRET", testAccessSecret)
	t.Setenv("BACKOFFICE_JWT_REFRESH_SECRET", testRefreshSecret)
}

func validConfig() *Config {
	return &Config{
		Server:      ServerConfig{Port: "8080", HealthPort: "9090"},
		Database:    DatabaseConfig{URL: "postgres://localhost/backoffice"},
		Redis:       RedisConfig{URL: "redis://localhost:6379"},
		Auth:        AuthConfig{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret, AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour, BcryptCost: 10},
		Invitations: InvitationConfig{TTL: 7 * 24 * time.Hour},
		Quota:       QuotaConfig{Backend: QuotaBackendRedis},
		Plans:       PlanConfig{DefaultPlan: "free"},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Invitations.TTL)
	assert.Equal(t, QuotaBackendRedis, cfg.Quota.Backend)
	assert.Equal(t, "free", cfg.Plans.DefaultPlan)
	assert.Equal(t, 0, cfg.Roles.CacheSize)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Jobs.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BACKOFFICE_PORT", "8000")
	t.Setenv("BACKOFFICE_QUOTA_BACKEND", "POSTGRES")
	t.Setenv("BACKOFFICE_INVITATION_TTL", "72h")
	t.Setenv("BACKOFFICE_LOG_LEVEL", "debug")
	t.Setenv("BACKOFFICE_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BACKOFFICE_ROLE_CACHE_SIZE", "256")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, QuotaBackendPostgres, cfg.Quota.Backend)
	assert.Equal(t, 72*time.Hour, cfg.Invitations.TTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 256, cfg.Roles.CacheSize)
}

func TestLoadConfig_MissingSecrets(t *testing.T) {
	t.Setenv("BACKOFFICE_DATABASE_URL", "postgres://localhost/backoffice")
	t.Setenv("BACKOFFICE_REDIS_URL", "redis://localhost:6379")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secrets are required")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"same ports", func(c *Config) { c.Server.HealthPort = "8080" }, "must be different"},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "database URL is required"},
		{"equal secrets", func(c *Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret }, "must differ"},
		{"short secret", func(c *Config) { c.Auth.AccessSecret = "short" }, "at least 32 bytes"},
		{"access ttl longer than refresh", func(c *Config) { c.Auth.AccessTTL = 48 * time.Hour }, "shorter than refresh"},
		{"bad bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt cost"},
		{"zero invitation ttl", func(c *Config) { c.Invitations.TTL = 0 }, "invitation TTL"},
		{"webhook without secret", func(c *Config) { c.Invitations.WebhookURL = "https://mailer.internal/hooks" }, "webhook secret"},
		{"unknown quota backend", func(c *Config) { c.Quota.Backend = "memcached" }, "invalid quota backend"},
		{"redis backend without redis", func(c *Config) { c.Redis.URL = "" }, "redis URL is required"},
		{"postgres backend without redis", func(c *Config) { c.Redis.URL = ""; c.Quota.Backend = QuotaBackendPostgres }, ""},
		{"rate limit without window", func(c *Config) {
			c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerWindow: 10}
		}, "auth rate limit"},
		{"disabled rate limit is not checked", func(c *Config) { c.RateLimit = RateLimitConfig{} }, ""},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "backoffice"
		}, "OpenTelemetry endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("nonsense"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "abc")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_FLOAT", "0.25")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.False(t, getEnvBool("TEST_BOOL_UNSET", false))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", 0))
	assert.Equal(t, 0.25, getEnvFloat("TEST_FLOAT", 1))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET", "fallback"))
	assert.Nil(t, getEnvList("TEST_LIST_UNSET"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BACKOFFICE_PORT=7070\nBACKOFFICE_LOG_LEVEL=debug\n"), 0o600))

	t.Setenv("BACKOFFICE_PORT", "")
	require.NoError(t, os.Unsetenv("BACKOFFICE_PORT"))
	t.Setenv("BACKOFFICE_LOG_LEVEL", "warn")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "7070", os.Getenv("BACKOFFICE_PORT"))
	// The process environment takes precedence over the file
	assert.Equal(t, "warn", os.Getenv("BACKOFFICE_LOG_LEVEL"))
}
