package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/backoffice/pkg/observability"
)

// Quota counter backends
const (
	QuotaBackendRedis    = "redis"
	QuotaBackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Invitations   InvitationConfig
	Quota         QuotaConfig
	RateLimit     RateLimitConfig
	Roles         RoleConfig
	Plans         PlanConfig
	Jobs          JobConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string

	// Health/metrics server (separate port for k8s liveness and readiness checks)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds Redis settings. An empty URL disables Redis.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	BcryptCost    int
}

// InvitationConfig holds invitation settings
type InvitationConfig struct {
	TTL           time.Duration
	AcceptBaseURL string
	// WebhookURL receives signed invitation.issued events; empty logs links instead
	WebhookURL         string
	WebhookSecret      string
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int
}

// QuotaConfig holds quota engine settings
type QuotaConfig struct {
	Backend   string
	KeyPrefix string
}

// RateLimitConfig throttles unauthenticated auth endpoints per client IP
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// RoleConfig holds the optional role cache settings. Size 0 disables it.
type RoleConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// PlanConfig holds plan catalog settings
type PlanConfig struct {
	CatalogPath string
	DefaultPlan string
}

// JobConfig holds cron schedules for housekeeping jobs
type JobConfig struct {
	Enabled                   bool
	InvitationCleanupSchedule string
	InvitationRetention       time.Duration
	CounterCleanupSchedule    string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadDotEnv loads KEY=value files into the environment. Variables already
// set win, and missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Invitations:   loadInvitationConfig(),
		Quota:         loadQuotaConfig(),
		RateLimit:     loadRateLimitConfig(),
		Roles:         loadRoleConfig(),
		Plans:         loadPlanConfig(),
		Jobs:          loadJobConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BACKOFFICE_HOST", "0.0.0.0"),
		Port:            getEnv("BACKOFFICE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("BACKOFFICE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BACKOFFICE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BACKOFFICE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BACKOFFICE_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("BACKOFFICE_MAX_BODY_BYTES", 1<<20),
		CORSOrigins:     getEnvList("BACKOFFICE_CORS_ORIGINS"),
		HealthPort:      getEnv("BACKOFFICE_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("BACKOFFICE_DATABASE_URL", getEnv("DATABASE_URL", "")),
		MaxConns:    getEnvInt("BACKOFFICE_DATABASE_MAX_CONNS", 25),
		MinConns:    getEnvInt("BACKOFFICE_DATABASE_MIN_CONNS", 5),
		Timeout:     getEnvDuration("BACKOFFICE_DATABASE_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("BACKOFFICE_DATABASE_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("BACKOFFICE_DATABASE_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("BACKOFFICE_REDIS_URL", ""),
		Password:   getEnv("BACKOFFICE_REDIS_PASSWORD", ""),
		DB:         getEnvInt("BACKOFFICE_REDIS_DB", -1),
		MaxRetries: getEnvInt("BACKOFFICE_REDIS_MAX_RETRIES", 0),
		PoolSize:   getEnvInt("BACKOFFICE_REDIS_POOL_SIZE", 0),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		AccessSecret:  getEnv("BACKOFFICE_JWT_ACCESS_SECRET", ""),
		RefreshSecret: getEnv("BACKOFFICE_JWT_REFRESH_SECRET", ""),
		AccessTTL:     getEnvDuration("BACKOFFICE_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:    getEnvDuration("BACKOFFICE_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		Issuer:        getEnv("BACKOFFICE_JWT_ISSUER", "backoffice"),
		BcryptCost:    getEnvInt("BACKOFFICE_BCRYPT_COST", 12),
	}
}

func loadInvitationConfig() InvitationConfig {
	return InvitationConfig{
		TTL:           getEnvDuration("BACKOFFICE_INVITATION_TTL", 7*24*time.Hour),
		AcceptBaseURL: getEnv("BACKOFFICE_INVITATION_ACCEPT_URL", "http://localhost:3000/invitation"),

		WebhookURL:         getEnv("BACKOFFICE_INVITATION_WEBHOOK_URL", ""),
		WebhookSecret:      getEnv("BACKOFFICE_INVITATION_WEBHOOK_SECRET", ""),
		WebhookTimeout:     getEnvDuration("BACKOFFICE_INVITATION_WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookMaxAttempts: getEnvInt("BACKOFFICE_INVITATION_WEBHOOK_MAX_ATTEMPTS", 3),
	}
}

func loadQuotaConfig() QuotaConfig {
	return QuotaConfig{
		Backend:   strings.ToLower(getEnv("BACKOFFICE_QUOTA_BACKEND", QuotaBackendRedis)),
		KeyPrefix: getEnv("BACKOFFICE_QUOTA_KEY_PREFIX", "quota"),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getEnvBool("BACKOFFICE_AUTH_RATE_LIMIT_ENABLED", true),
		RequestsPerWindow: getEnvInt("BACKOFFICE_AUTH_RATE_LIMIT_REQUESTS", 20),
		Window:            getEnvDuration("BACKOFFICE_AUTH_RATE_LIMIT_WINDOW", time.Minute),
		Burst:             getEnvInt("BACKOFFICE_AUTH_RATE_LIMIT_BURST", 5),
	}
}

func loadRoleConfig() RoleConfig {
	return RoleConfig{
		CacheSize: getEnvInt("BACKOFFICE_ROLE_CACHE_SIZE", 0),
		CacheTTL:  getEnvDuration("BACKOFFICE_ROLE_CACHE_TTL", 30*time.Second),
	}
}

func loadPlanConfig() PlanConfig {
	return PlanConfig{
		CatalogPath: getEnv("BACKOFFICE_PLAN_CATALOG", ""),
		DefaultPlan: getEnv("BACKOFFICE_DEFAULT_PLAN", "free"),
	}
}

func loadJobConfig() JobConfig {
	return JobConfig{
		Enabled:                   getEnvBool("BACKOFFICE_JOBS_ENABLED", true),
		InvitationCleanupSchedule: getEnv("BACKOFFICE_INVITATION_CLEANUP_SCHEDULE", "@daily"),
		InvitationRetention:       getEnvDuration("BACKOFFICE_INVITATION_RETENTION", 30*24*time.Hour),
		CounterCleanupSchedule:    getEnv("BACKOFFICE_COUNTER_CLEANUP_SCHEDULE", "@daily"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("BACKOFFICE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BACKOFFICE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BACKOFFICE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BACKOFFICE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BACKOFFICE_OTEL_SERVICE_NAME", "backoffice"),
		OTelServiceVersion: getEnv("BACKOFFICE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BACKOFFICE_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("BACKOFFICE_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return fmt.Errorf("both JWT access and refresh secrets are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("JWT access and refresh secrets must differ")
	}
	if len(c.Auth.AccessSecret) < 32 || len(c.Auth.RefreshSecret) < 32 {
		return fmt.Errorf("JWT secrets must be at least 32 bytes")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return fmt.Errorf("access token TTL must be shorter than refresh token TTL")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	if c.Invitations.TTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}
	if c.Invitations.WebhookURL != "" && c.Invitations.WebhookSecret == "" {
		return fmt.Errorf("invitation webhook secret is required when a webhook URL is set")
	}

	switch c.Quota.Backend {
	case QuotaBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis quota backend")
		}
	case QuotaBackendPostgres:
	default:
		return fmt.Errorf("invalid quota backend: %s (must be redis or postgres)", c.Quota.Backend)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("auth rate limit requests and window must be positive")
	}

	if c.Plans.DefaultPlan == "" {
		return fmt.Errorf("default plan is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
