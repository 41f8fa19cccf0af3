package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/larsjoon/joonify/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "JOONIFY_TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "JOONIFY_TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestTypedEnvHelpers covers the parsing helpers, including bad input
// falling back to the default.
func TestTypedEnvHelpers(t *testing.T) {
	t.Setenv("JOONIFY_TEST_BOOL", "1")
	t.Setenv("JOONIFY_TEST_BOOL_NO", "no")
	t.Setenv("JOONIFY_TEST_INT", "42")
	t.Setenv("JOONIFY_TEST_INT_BAD", "forty")
	t.Setenv("JOONIFY_TEST_FLOAT", "0.25")
	t.Setenv("JOONIFY_TEST_DURATION", "90s")
	t.Setenv("JOONIFY_TEST_DURATION_BAD", "soon")

	if !getEnvBool("JOONIFY_TEST_BOOL", false) {
		t.Error("getEnvBool(1) = false, want true")
	}
	if getEnvBool("JOONIFY_TEST_BOOL_NO", true) {
		t.Error("getEnvBool(no) = true, want false")
	}
	if got := getEnvInt("JOONIFY_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("JOONIFY_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("getEnvInt(bad) = %d, want default 7", got)
	}
	if got := getEnvFloat("JOONIFY_TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat() = %v, want 0.25", got)
	}
	if got := getEnvDuration("JOONIFY_TEST_DURATION", 0); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("JOONIFY_TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration(bad) = %v, want default 1m", got)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port == cfg.Server.HealthPort {
		t.Error("default ports must differ")
	}
	if cfg.Storage.Type != "filesystem" {
		t.Errorf("default storage = %s, want filesystem", cfg.Storage.Type)
	}
	if cfg.Storage.FilesystemRoot == "" {
		t.Error("default filesystem root must be set")
	}
	if cfg.Stats.ActorName != "joonify-live-stats" {
		t.Errorf("default actor name = %s", cfg.Stats.ActorName)
	}
	if cfg.LogLevel() != observability.InfoLevel {
		t.Errorf("default log level = %v, want INFO", cfg.LogLevel())
	}

	// Everything but the secret is valid out of the box.
	cfg.Stats.Secret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Stats.Secret = "" },
			wantErr: "shared secret is required",
		},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Storage.Type = "hybrid" },
			wantErr: "invalid storage type",
		},
		{
			name:    "sqlite without dsn",
			mutate:  func(c *Config) { c.Storage.Type = "sqlite" },
			wantErr: "SQL DSN is required",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Type = "s3" },
			wantErr: "S3 bucket is required",
		},
		{
			name:    "bad schedule",
			mutate:  func(c *Config) { c.Analytics.Schedule = "every half hour" },
			wantErr: "invalid schedule",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "loud" },
			wantErr: "unknown log level",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTel.Enabled = true
				c.Observability.OTel.Endpoint = ""
			},
			wantErr: "OpenTelemetry endpoint",
		},
		{
			name: "redis ok",
			mutate: func(c *Config) {
				c.Storage.Type = "redis"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Stats.Secret = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("JOONIFY_HMAC_KEY", "env-secret")
	t.Setenv("CLOUDFLARE_ZONE_ID", "zone-1")
	t.Setenv("ANALYTICS_TOKEN", "cf-token")
	t.Setenv("RESEND_API_KEY", "re_key")
	t.Setenv("JOONIFY_PORT", "8181")
	t.Setenv("JOONIFY_STORAGE_TYPE", "filesystem")
	t.Setenv("JOONIFY_FILESYSTEM_ROOT", t.TempDir())
	t.Setenv("JOONIFY_CONTACT_RATE_BURST", "9")
	t.Setenv("JOONIFY_CONTACT_TRUST_PROXY", "true")
	t.Setenv("JOONIFY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Stats.Secret != "env-secret" {
		t.Errorf("secret = %q", cfg.Stats.Secret)
	}
	if !cfg.AnalyticsEnabled() {
		t.Error("AnalyticsEnabled() = false with zone and token set")
	}
	if !cfg.ContactEnabled() {
		t.Error("ContactEnabled() = false with API key set")
	}
	if cfg.Server.Port != "8181" {
		t.Errorf("port = %s, want 8181", cfg.Server.Port)
	}
	if cfg.Contact.RateLimit.BurstSize != 9 {
		t.Errorf("burst = %d, want 9", cfg.Contact.RateLimit.BurstSize)
	}
	if !cfg.Contact.RateLimit.TrustProxyHeaders {
		t.Error("TrustProxyHeaders = false with JOONIFY_CONTACT_TRUST_PROXY=true")
	}
	if cfg.LogLevel() != observability.DebugLevel {
		t.Errorf("log level = %v, want DEBUG", cfg.LogLevel())
	}

	rc := cfg.ResendConfig()
	if rc.APIKey != "re_key" || rc.To != "lars@joonify.dev" {
		t.Errorf("ResendConfig() = %+v", rc)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joonify.yaml")
	yaml := `
server:
  port: "7000"
  health_port: "7001"
stats:
  secret: file-secret
  subscriptions:
    send_queue_size: 4
    ping_interval: 5s
analytics:
  schedule: "0 * * * *"
  cycle_timeout: 45s
storage:
  type: redis
  redis_url: redis://cache:6379/1
contact:
  rate_limit:
    requests_per_window: 2
    window_duration: 1m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("JOONIFY_HEALTH_PORT", "7002")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "7000" || cfg.Server.HealthPort != "7002" {
		t.Errorf("ports = %s/%s, want 7000/7002", cfg.Server.Port, cfg.Server.HealthPort)
	}
	if cfg.Stats.Secret != "file-secret" {
		t.Errorf("secret = %q", cfg.Stats.Secret)
	}
	if cfg.Stats.Subscriptions.SendQueueSize != 4 || cfg.Stats.Subscriptions.PingInterval != 5*time.Second {
		t.Errorf("subscriptions = %+v", cfg.Stats.Subscriptions)
	}
	if cfg.Stats.Subscriptions.PongWait != 60*time.Second {
		t.Errorf("unset subscription fields keep defaults, got pong wait %v", cfg.Stats.Subscriptions.PongWait)
	}
	if cfg.Analytics.CycleTimeout != 45*time.Second {
		t.Errorf("cycle timeout = %v", cfg.Analytics.CycleTimeout)
	}
	if cfg.Storage.RedisURL != "redis://cache:6379/1" {
		t.Errorf("redis url = %s", cfg.Storage.RedisURL)
	}
	if cfg.Contact.RateLimit.WindowDuration != time.Minute || cfg.Contact.RateLimit.BurstSize != 3 {
		t.Errorf("rate limit = %+v", cfg.Contact.RateLimit)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := LoadConfig(); err == nil {
			t.Error("LoadConfig() with missing file succeeded")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		os.WriteFile(path, []byte("server: [unterminated"), 0o600)
		t.Setenv(ConfigFileEnv, path)
		if _, err := LoadConfig(); err == nil {
			t.Error("LoadConfig() with malformed file succeeded")
		}
	})

	t.Run("no secret", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		t.Setenv("JOONIFY_HMAC_KEY", "")
		if _, err := LoadConfig(); err == nil {
			t.Error("LoadConfig() without secret succeeded")
		}
	})
}
