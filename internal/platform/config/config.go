// Package config loads application configuration from a YAML file and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls persistence.
type DatabaseConfig struct {
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifeSecs int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// ConnMaxLifetime returns the configured connection lifetime as a Duration.
func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifeSecs) * time.Second
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
}

// CacheConfig controls the read-through caches (spec §11). The caches are
// always process-local in-memory stores; RedisURL, when set, is only
// probed by the /system/status endpoint.
type CacheConfig struct {
	RedisURL          string `json:"redis_url" yaml:"redis_url" env:"REDIS_URL"`
	ActiveRulesTTLSec int    `json:"active_rules_ttl_seconds" yaml:"active_rules_ttl_seconds" env:"CACHE_ACTIVE_RULES_TTL_SECONDS"`
	ListFactsTTLSec   int    `json:"list_facts_ttl_seconds" yaml:"list_facts_ttl_seconds" env:"CACHE_LIST_FACTS_TTL_SECONDS"`
}

// ActiveRulesTTL returns the active-rules cache TTL as a Duration.
func (c CacheConfig) ActiveRulesTTL() time.Duration {
	return time.Duration(c.ActiveRulesTTLSec) * time.Second
}

// ListFactsTTL returns the list-facts cache TTL as a Duration.
func (c CacheConfig) ListFactsTTL() time.Duration {
	return time.Duration(c.ListFactsTTLSec) * time.Second
}

// AuthConfig controls HTTP API authentication.
type AuthConfig struct {
	JWTSecret    string `json:"jwt_secret" yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	TenantClaim  string `json:"tenant_claim" yaml:"tenant_claim" env:"AUTH_TENANT_CLAIM"`
}

// RateLimitConfig controls the HTTP API's per-organization request budget.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `json:"burst" yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifeSecs: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Cache: CacheConfig{
			ActiveRulesTTLSec: 60,
			ListFactsTTLSec:   300,
		},
		Auth: AuthConfig{TenantClaim: "org_id"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// Load loads configuration from an optional YAML file, then applies
// environment variable overrides: flags > env > file > default, per the
// caller's precedence (callers apply flags after Load returns).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
