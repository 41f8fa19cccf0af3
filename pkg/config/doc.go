// Package config provides application configuration management.
//
// # Overview
//
// LoadConfig starts from Default, applies the YAML file named by
// JOONIFY_CONFIG_FILE when set, then applies environment variables, and
// finally validates the result.
//
// # Configuration Structure
//
// Secrets (names kept from the original deployment):
//
//	JOONIFY_HMAC_KEY="..."        # shared secret, required
//	CLOUDFLARE_ZONE_ID="..."      # analytics zone tag
//	ANALYTICS_TOKEN="..."         # analytics API token
//	RESEND_API_KEY="..."          # contact relay
//
// Server settings:
//
//	JOONIFY_HOST="0.0.0.0"
//	JOONIFY_PORT="8080"
//	JOONIFY_HEALTH_PORT="9090"
//
// Storage settings:
//
//	JOONIFY_STORAGE_TYPE="redis"  # memory, filesystem, redis, postgres, sqlite, s3
//	JOONIFY_REDIS_URL="redis://localhost:6379/0"
//	JOONIFY_SQL_DSN="postgres://localhost/joonify?sslmode=disable"
//	JOONIFY_S3_BUCKET="joonify-stats"
//
// Aggregation:
//
//	JOONIFY_SCHEDULE="*/30 * * * *"
//	JOONIFY_CYCLE_TIMEOUT="30s"
//
// Observability:
//
//	JOONIFY_LOG_LEVEL="info"
//	JOONIFY_OTEL_ENABLED="true"
//	JOONIFY_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings can be given as YAML:
//
//	stats:
//	  secret: ...
//	  subscriptions:
//	    send_queue_size: 16
//	storage:
//	  type: sqlite
//	  sql_dsn: /var/lib/joonify/stats.db
//
// # Related Packages
//
//   - pkg/storage: storage.Config is embedded as-is
//   - pkg/observability: log level and OpenTelemetry settings
package config
