package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// Store backend types.
const (
	StoreTypeDynamo   = "dynamo"
	StoreTypePostgres = "postgres"
	StoreTypeMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Store configuration
	Store StoreConfig

	// Cache configuration
	Cache CacheConfig

	// Identity provider configuration
	Cognito CognitoConfig

	// Notification configuration
	SES SESConfig

	// Access resolution configuration
	Access AccessConfig

	// Reconciliation configuration
	Reconcile ReconcileConfig

	// Observability configuration
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

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StoreConfig holds directory store configuration
type StoreConfig struct {
	Type string

	// DynamoDB
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string // override for local development

	// PostgreSQL
	PostgresURL string
}

// CacheConfig holds permission cache configuration
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

// CognitoConfig holds identity provider configuration. An empty user pool id
// leaves the adapter unconfigured; lifecycle operations then skip provider
// sync and reconciliation refuses to run.
type CognitoConfig struct {
	UserPoolID string
	Region     string
}

// SESConfig holds credential notification configuration. An empty sender
// disables dispatch.
type SESConfig struct {
	Sender string
	Region string
}

// AccessConfig holds super-admin resolution settings
type AccessConfig struct {
	PlatformAdminEmail string
	SuperAdminGroup    string
	NameCacheSize      int
}

// ReconcileConfig holds scheduled reconciliation settings. An empty
// schedule disables the scheduler; on-demand runs stay available.
type ReconcileConfig struct {
	Schedule        string
	Timeout         time.Duration
	IncludeInactive bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Cache:         loadCacheConfig(),
		Cognito:       loadCognitoConfig(),
		SES:           loadSESConfig(),
		Access:        loadAccessConfig(),
		Reconcile:     loadReconcileConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TENANTD_HOST", "0.0.0.0"),
		Port:            getEnv("TENANTD_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TENANTD_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TENANTD_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TENANTD_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TENANTD_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TENANTD_HEALTH_PORT", "9090"),
	}
}

// loadStoreConfig loads store configuration from environment
func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Type:           getEnv("TENANTD_STORE_TYPE", StoreTypeDynamo),
		DynamoTable:    getEnv("TENANTD_DYNAMO_TABLE", "tenantd-directory"),
		DynamoRegion:   getEnv("TENANTD_DYNAMO_REGION", "us-east-1"),
		DynamoEndpoint: getEnv("TENANTD_DYNAMO_ENDPOINT", ""),
		PostgresURL:    getEnv("TENANTD_POSTGRES_URL", ""),
	}
}

// loadCacheConfig loads permission cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  getEnvBool("TENANTD_CACHE_ENABLED", false),
		RedisURL: getEnv("TENANTD_REDIS_URL", "redis://localhost:6379"),
		TTL:      getEnvDuration("TENANTD_CACHE_TTL", 5*time.Minute),
	}
}

// loadCognitoConfig loads identity provider configuration from environment
func loadCognitoConfig() CognitoConfig {
	return CognitoConfig{
		UserPoolID: getEnv("TENANTD_COGNITO_USER_POOL_ID", ""),
		Region:     getEnv("TENANTD_COGNITO_REGION", "us-east-1"),
	}
}

// loadSESConfig loads notification configuration from environment
func loadSESConfig() SESConfig {
	return SESConfig{
		Sender: getEnv("TENANTD_SES_SENDER", ""),
		Region: getEnv("TENANTD_SES_REGION", "us-east-1"),
	}
}

// loadAccessConfig loads access resolution configuration from environment
func loadAccessConfig() AccessConfig {
	return AccessConfig{
		PlatformAdminEmail: getEnv("TENANTD_PLATFORM_ADMIN_EMAIL", ""),
		SuperAdminGroup:    getEnv("TENANTD_SUPER_ADMIN_GROUP", ""),
		NameCacheSize:      getEnvInt("TENANTD_ACCESS_NAME_CACHE_SIZE", 512),
	}
}

// loadReconcileConfig loads reconciliation configuration from environment
func loadReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Schedule:        getEnv("TENANTD_RECONCILE_SCHEDULE", ""),
		Timeout:         getEnvDuration("TENANTD_RECONCILE_TIMEOUT", 10*time.Minute),
		IncludeInactive: getEnvBool("TENANTD_RECONCILE_INCLUDE_INACTIVE", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("TENANTD_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("TENANTD_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate store config based on type
	switch c.Store.Type {
	case StoreTypeDynamo:
		if c.Store.DynamoTable == "" {
			return fmt.Errorf("dynamo table is required for dynamo store")
		}
		if c.Store.DynamoRegion == "" {
			return fmt.Errorf("dynamo region is required for dynamo store")
		}
	case StoreTypePostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	case StoreTypeMemory:
		// nothing to validate
	default:
		return fmt.Errorf("invalid store type: %s (must be dynamo, postgres, or memory)", c.Store.Type)
	}

	// Validate cache config
	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the cache is enabled")
	}

	// Validate cognito config
	if c.Cognito.UserPoolID != "" && c.Cognito.Region == "" {
		return fmt.Errorf("cognito region is required when a user pool is set")
	}

	return nil
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
