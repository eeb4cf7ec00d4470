// Package config loads service configuration with layered precedence:
// built-in defaults, then an optional YAML file, then READINESS_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no explicit path or
// READINESS_CONFIG is given.
const DefaultFile = "readiness.yaml"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Events    EventsConfig    `yaml:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StorageConfig configures the record store.
type StorageConfig struct {
	// Driver selects the backend: "sqlite3" (embedded) or "postgres".
	Driver string `yaml:"driver"`
	// DataDir holds the sqlite database and the calibration files.
	DataDir string `yaml:"data_dir"`
	// DSN is the postgres connection string; ignored for sqlite.
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the rate-limit backend. Empty Addr disables redis
// and the limiter falls back to in-memory buckets.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventsConfig configures the NATS publisher. Empty URL disables publishing.
type EventsConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// RateLimitConfig configures per-IP and per-endpoint budgets.
type RateLimitConfig struct {
	PerMinute            int `yaml:"per_minute"`
	BurstMultiplier      int `yaml:"burst_multiplier"`
	ConfigApplyPerMinute int `yaml:"config_apply_per_minute"`
}

// CacheConfig configures the assessment response cache.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// AuthConfig configures reviewer tokens for config mutation.
type AuthConfig struct {
	ReviewerSecret  string `yaml:"reviewer_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// RetentionConfig configures the outcome record retention sweep.
type RetentionConfig struct {
	Days int `yaml:"days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Storage: StorageConfig{
			Driver:  "sqlite3",
			DataDir: "./data",
		},
		Events: EventsConfig{
			Prefix: "readiness",
		},
		RateLimit: RateLimitConfig{
			PerMinute:            60,
			BurstMultiplier:      2,
			ConfigApplyPerMinute: 10,
		},
		Cache: CacheConfig{
			TTLMinutes: 15,
		},
		Auth: AuthConfig{
			ReviewerSecret:  "readiness-dev-secret-change-in-production",
			TokenTTLMinutes: 60,
		},
		Retention: RetentionConfig{
			Days: 365,
		},
	}
}

// Load builds the effective configuration. An explicit path (or
// READINESS_CONFIG) must exist; the default file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := resolvePath(path)
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", resolved, err)
		}
		slog.Debug("Loaded config file", "path", resolved)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("READINESS_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite3":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for sqlite")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", "sqlite3", "postgres")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("rate_limit.per_minute must be positive")
	}
	if c.RateLimit.BurstMultiplier <= 0 {
		return fmt.Errorf("rate_limit.burst_multiplier must be positive")
	}
	if c.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be positive")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative")
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// TokenTTL returns the reviewer token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// RetentionPeriod returns the record retention window. Zero days disables
// the sweep.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}

func (c *Config) applyEnv() {
	c.Server.Port = envOrDefault("READINESS_PORT", c.Server.Port)
	c.Storage.Driver = envOrDefault("READINESS_DB_DRIVER", c.Storage.Driver)
	c.Storage.DataDir = envOrDefault("READINESS_DATA_DIR", c.Storage.DataDir)
	c.Storage.DSN = envOrDefault("READINESS_DB_DSN", c.Storage.DSN)
	c.Redis.Addr = envOrDefault("READINESS_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envOrDefault("READINESS_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("READINESS_REDIS_DB", c.Redis.DB)
	c.Events.URL = envOrDefault("READINESS_NATS_URL", c.Events.URL)
	c.Events.Prefix = envOrDefault("READINESS_NATS_PREFIX", c.Events.Prefix)
	c.RateLimit.PerMinute = envInt("READINESS_RATE_PER_MINUTE", c.RateLimit.PerMinute)
	c.RateLimit.BurstMultiplier = envInt("READINESS_RATE_BURST_MULTIPLIER", c.RateLimit.BurstMultiplier)
	c.RateLimit.ConfigApplyPerMinute = envInt("READINESS_RATE_CONFIG_APPLY", c.RateLimit.ConfigApplyPerMinute)
	c.Cache.TTLMinutes = envInt("READINESS_CACHE_TTL_MINUTES", c.Cache.TTLMinutes)
	c.Auth.ReviewerSecret = envOrDefault("READINESS_REVIEWER_SECRET", c.Auth.ReviewerSecret)
	c.Auth.TokenTTLMinutes = envInt("READINESS_TOKEN_TTL_MINUTES", c.Auth.TokenTTLMinutes)
	c.Retention.Days = envInt("READINESS_RETENTION_DAYS", c.Retention.Days)
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment override", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}
