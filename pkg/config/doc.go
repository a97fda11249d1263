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
//	CALLGATE_HOST="0.0.0.0"
//	CALLGATE_PORT="8080"
//	CALLGATE_HEALTH_PORT="9090"
//	CALLGATE_READ_TIMEOUT="15s"
//	CALLGATE_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	CALLGATE_POSTGRES_URL="postgres://localhost/callgate"
//	CALLGATE_POSTGRES_MAX_CONNS="25"
//	CALLGATE_REDIS_URL="redis://localhost:6379/0"
//	CALLGATE_REDIS_POOL_SIZE="10"
//
// Admission and billing settings:
//
//	CALLGATE_FREE_TIER_CONCURRENCY_LIMIT="1"
//	CALLGATE_BLOCK_ON_QUOTA_EXHAUSTED="true"
//	CALLGATE_PLAN_FILE="/etc/callgate/plans.yaml"
//	CALLGATE_BILLING_PERIOD="720h"
//
// Call lifecycle settings:
//
//	CALLGATE_CALL_DEFAULT_DURATION="2s"
//	CALLGATE_CALL_MAX_DURATION="5m"
//	CALLGATE_REAPER_INTERVAL="1m"
//	CALLGATE_REAPER_MAX_AGE="10m"
//
// Observability settings:
//
//	CALLGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	CALLGATE_METRICS_ENABLED="true"
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
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage/postgres: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
