// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	TENANTD_HOST="0.0.0.0"
//	TENANTD_PORT="8080"
//	TENANTD_HEALTH_PORT="9090"
//	TENANTD_READ_TIMEOUT="15s"
//	TENANTD_WRITE_TIMEOUT="15s"
//
// Store settings:
//
//	TENANTD_STORE_TYPE="dynamo"  # dynamo, postgres, memory
//	TENANTD_DYNAMO_TABLE="tenantd-directory"
//	TENANTD_DYNAMO_REGION="us-east-1"
//	TENANTD_DYNAMO_ENDPOINT=""   # override for local development
//	TENANTD_POSTGRES_URL="postgres://localhost/tenantd"
//
// Cache settings:
//
//	TENANTD_CACHE_ENABLED="true"
//	TENANTD_REDIS_URL="redis://localhost:6379"
//	TENANTD_CACHE_TTL="5m"
//
// Identity provider settings:
//
//	TENANTD_COGNITO_USER_POOL_ID="us-east-1_abc123"
//	TENANTD_COGNITO_REGION="us-east-1"
//
// Notification settings:
//
//	TENANTD_SES_SENDER="no-reply@example.com"
//	TENANTD_SES_REGION="us-east-1"
//
// Access settings:
//
//	TENANTD_PLATFORM_ADMIN_EMAIL="admin@example.com"
//	TENANTD_SUPER_ADMIN_GROUP="platform-admins"
//
// Reconciliation settings:
//
//	TENANTD_RECONCILE_SCHEDULE="0 * * * *"  # empty disables the scheduler
//	TENANTD_RECONCILE_TIMEOUT="10m"
//
// Observability settings:
//
//	TENANTD_LOG_LEVEL="info"  # debug, info, warn, error
//	TENANTD_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Store: %s\n", cfg.Store.Type)
//
// # Related Packages
//
//   - pkg/kv: Uses store configuration
//   - pkg/observability: Uses observability configuration
package config
