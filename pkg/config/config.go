package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/larsjoon/joonify/pkg/actor"
	"github.com/larsjoon/joonify/pkg/gateway"
	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/relay"
	"github.com/larsjoon/joonify/pkg/storage"
)

// ConfigFileEnv names an optional YAML file applied before env overrides.
const ConfigFileEnv = "JOONIFY_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Stats         StatsConfig         `yaml:"stats"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Contact       ContactConfig       `yaml:"contact"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	// WriteTimeout applies to the health server only; the public server
	// carries long-lived websocket subscriptions.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// StatsConfig configures the stats actor.
type StatsConfig struct {
	// Secret signs updates and authorizes privileged reads and manual triggers.
	Secret        string                   `yaml:"secret"`
	ActorName     string                   `yaml:"actor_name"`
	Subscriptions actor.SubscriptionConfig `yaml:"subscriptions"`
}

// AnalyticsConfig configures the aggregator and its schedule.
type AnalyticsConfig struct {
	ZoneTag      string        `yaml:"zone_tag"`
	Token        string        `yaml:"token"`
	Endpoint     string        `yaml:"endpoint"`
	Timeout      time.Duration `yaml:"timeout"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
	// Schedule is a standard five-field cron expression.
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// ContactConfig configures the contact relay.
type ContactConfig struct {
	ResendAPIKey   string                  `yaml:"resend_api_key"`
	ResendEndpoint string                  `yaml:"resend_endpoint"`
	From           string                  `yaml:"from"`
	To             string                  `yaml:"to"`
	Timeout        time.Duration           `yaml:"timeout"`
	RateLimit      gateway.RateLimitConfig `yaml:"rate_limit"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string                   `yaml:"log_level"`
	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// Default returns the configuration used before any file or env override.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Stats: StatsConfig{
			ActorName:     actor.DefaultName,
			Subscriptions: actor.DefaultSubscriptionConfig(),
		},
		Analytics: AnalyticsConfig{
			Timeout:      10 * time.Second,
			CycleTimeout: 30 * time.Second,
			Schedule:     "*/30 * * * *",
		},
		Contact: ContactConfig{
			From:      "onboarding@resend.dev",
			To:        "lars@joonify.dev",
			Timeout:   10 * time.Second,
			RateLimit: gateway.DefaultRateLimitConfig(),
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "joonify",
				ServiceVersion: "dev",
				Insecure:       true,
				SampleRatio:    1,
			},
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by JOONIFY_CONFIG_FILE, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("JOONIFY_HOST", s.Host)
	s.Port = getEnv("JOONIFY_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("JOONIFY_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("JOONIFY_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("JOONIFY_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("JOONIFY_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("JOONIFY_HEALTH_PORT", s.HealthPort)

	c.applyStorageEnv()

	st := &c.Stats
	st.Secret = getEnv("JOONIFY_HMAC_KEY", st.Secret)
	st.ActorName = getEnv("JOONIFY_ACTOR_NAME", st.ActorName)
	st.Subscriptions.SendQueueSize = getEnvInt("JOONIFY_SUBSCRIPTION_QUEUE_SIZE", st.Subscriptions.SendQueueSize)
	st.Subscriptions.WriteTimeout = getEnvDuration("JOONIFY_SUBSCRIPTION_WRITE_TIMEOUT", st.Subscriptions.WriteTimeout)
	st.Subscriptions.PingInterval = getEnvDuration("JOONIFY_SUBSCRIPTION_PING_INTERVAL", st.Subscriptions.PingInterval)
	st.Subscriptions.PongWait = getEnvDuration("JOONIFY_SUBSCRIPTION_PONG_WAIT", st.Subscriptions.PongWait)

	a := &c.Analytics
	a.ZoneTag = getEnv("CLOUDFLARE_ZONE_ID", a.ZoneTag)
	a.Token = getEnv("ANALYTICS_TOKEN", a.Token)
	a.Endpoint = getEnv("JOONIFY_ANALYTICS_ENDPOINT", a.Endpoint)
	a.Timeout = getEnvDuration("JOONIFY_ANALYTICS_TIMEOUT", a.Timeout)
	a.CycleTimeout = getEnvDuration("JOONIFY_CYCLE_TIMEOUT", a.CycleTimeout)
	a.Schedule = getEnv("JOONIFY_SCHEDULE", a.Schedule)
	a.RunOnStart = getEnvBool("JOONIFY_RUN_ON_START", a.RunOnStart)

	ct := &c.Contact
	ct.ResendAPIKey = getEnv("RESEND_API_KEY", ct.ResendAPIKey)
	ct.ResendEndpoint = getEnv("JOONIFY_RESEND_ENDPOINT", ct.ResendEndpoint)
	ct.From = getEnv("JOONIFY_CONTACT_FROM", ct.From)
	ct.To = getEnv("JOONIFY_CONTACT_TO", ct.To)
	ct.Timeout = getEnvDuration("JOONIFY_CONTACT_TIMEOUT", ct.Timeout)
	ct.RateLimit.RequestsPerWindow = getEnvInt("JOONIFY_CONTACT_RATE_LIMIT", ct.RateLimit.RequestsPerWindow)
	ct.RateLimit.WindowDuration = getEnvDuration("JOONIFY_CONTACT_RATE_WINDOW", ct.RateLimit.WindowDuration)
	ct.RateLimit.BurstSize = getEnvInt("JOONIFY_CONTACT_RATE_BURST", ct.RateLimit.BurstSize)
	ct.RateLimit.TrustProxyHeaders = getEnvBool("JOONIFY_CONTACT_TRUST_PROXY", ct.RateLimit.TrustProxyHeaders)

	o := &c.Observability
	o.LogLevel = getEnv("JOONIFY_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("JOONIFY_METRICS_ENABLED", o.MetricsEnabled)
	o.OTel.Enabled = getEnvBool("JOONIFY_OTEL_ENABLED", o.OTel.Enabled)
	o.OTel.Endpoint = getEnv("JOONIFY_OTEL_ENDPOINT", o.OTel.Endpoint)
	o.OTel.ServiceName = getEnv("JOONIFY_OTEL_SERVICE_NAME", o.OTel.ServiceName)
	o.OTel.ServiceVersion = getEnv("JOONIFY_OTEL_SERVICE_VERSION", o.OTel.ServiceVersion)
	o.OTel.Insecure = getEnvBool("JOONIFY_OTEL_INSECURE", o.OTel.Insecure)
	o.OTel.SampleRatio = getEnvFloat("JOONIFY_OTEL_SAMPLE_RATIO", o.OTel.SampleRatio)
}

func (c *Config) applyStorageEnv() {
	st := &c.Storage
	st.Type = getEnv("JOONIFY_STORAGE_TYPE", st.Type)
	st.Key = getEnv("JOONIFY_STORAGE_KEY", st.Key)
	st.Timeout = getEnvDuration("JOONIFY_STORAGE_TIMEOUT", st.Timeout)
	st.FilesystemRoot = getEnv("JOONIFY_FILESYSTEM_ROOT", st.FilesystemRoot)
	st.SQLDSN = getEnv("JOONIFY_SQL_DSN", st.SQLDSN)

	st.RedisURL = getEnv("JOONIFY_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("JOONIFY_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("JOONIFY_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("JOONIFY_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("JOONIFY_REDIS_POOL_SIZE", st.RedisPoolSize)

	st.S3Endpoint = getEnv("JOONIFY_S3_ENDPOINT", st.S3Endpoint)
	st.S3Region = getEnv("JOONIFY_S3_REGION", st.S3Region)
	st.S3Bucket = getEnv("JOONIFY_S3_BUCKET", st.S3Bucket)
	st.S3AccessKey = getEnv("JOONIFY_S3_ACCESS_KEY", st.S3AccessKey)
	st.S3SecretKey = getEnv("JOONIFY_S3_SECRET_KEY", st.S3SecretKey)
	st.S3UsePathStyle = getEnvBool("JOONIFY_S3_USE_PATH_STYLE", st.S3UsePathStyle)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Stats.Secret == "" {
		errs = append(errs, errors.New("shared secret is required (JOONIFY_HMAC_KEY)"))
	}

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.HealthPort == "" {
		errs = append(errs, errors.New("health port is required"))
	}
	if c.Server.Port != "" && c.Server.Port == c.Server.HealthPort {
		errs = append(errs, errors.New("server port and health port must be different"))
	}

	switch c.Storage.Type {
	case "memory":
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			errs = append(errs, errors.New("filesystem root is required for filesystem storage"))
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("redis URL is required for redis storage"))
		}
	case "postgres", "sqlite":
		if c.Storage.SQLDSN == "" {
			errs = append(errs, fmt.Errorf("SQL DSN is required for %s storage", c.Storage.Type))
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, errors.New("S3 bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage type: %s (must be memory, filesystem, redis, postgres, sqlite or s3)", c.Storage.Type))
	}

	if c.Analytics.Schedule != "" {
		if _, err := cron.ParseStandard(c.Analytics.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid schedule %q: %w", c.Analytics.Schedule, err))
		}
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTel.ServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}

// AnalyticsEnabled reports whether aggregation has the credentials it needs.
func (c *Config) AnalyticsEnabled() bool {
	return c.Analytics.ZoneTag != "" && c.Analytics.Token != ""
}

// ContactEnabled reports whether the contact relay has an API key.
func (c *Config) ContactEnabled() bool {
	return c.Contact.ResendAPIKey != ""
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() observability.LogLevel {
	level, _ := observability.ParseLogLevel(c.Observability.LogLevel)
	return level
}

// ResendConfig returns the relay client configuration.
func (c *Config) ResendConfig() relay.ResendConfig {
	return relay.ResendConfig{
		Endpoint: c.Contact.ResendEndpoint,
		APIKey:   c.Contact.ResendAPIKey,
		From:     c.Contact.From,
		To:       c.Contact.To,
		Timeout:  c.Contact.Timeout,
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

// getEnvFloat returns a float environment variable or a default
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
