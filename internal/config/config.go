// Package config loads service configuration from the environment, with an
// optional YAML file underneath for deployments that prefer files over
// variables. Environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAllowedOrigins is used when ALLOWED_ORIGINS is unset.
const DefaultAllowedOrigins = "http://localhost:3000,https://app.lacs.cc"

// Config holds application configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	ServerPort  string `yaml:"server_port"`
	FrontendURL string `yaml:"frontend_url"`

	// AllowedOrigins is the immutable cross-domain allow-list, fixed for
	// the lifetime of the process.
	AllowedOrigins []string `yaml:"allowed_origins"`

	IdentityURL          string `yaml:"identity_url"`
	IdentityClientID     string `yaml:"identity_client_id"`
	IdentityClientSecret string `yaml:"identity_client_secret"`

	RedisURL      string `yaml:"redis_url"`
	RateLimitRate string `yaml:"rate_limit_rate"`

	RabbitMQURL      string `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int    `yaml:"rabbitmq_prefetch"`

	EnableHSTS      bool `yaml:"enable_hsts"`
	ServerDebugMode bool `yaml:"server_debug_mode"`
	WorkerDebugMode bool `yaml:"worker_debug_mode"`

	OTELEnabled  bool   `yaml:"otel_enabled"`
	OTELEndpoint string `yaml:"otel_endpoint"`
}

// Load builds the configuration. A YAML file named by CONFIG_FILE seeds the
// defaults; environment variables override it; hard defaults fill the rest.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ServerPort = getEnv("SERVER_PORT", fallback(cfg.ServerPort, "8080"))
	cfg.FrontendURL = getEnv("FRONTEND_URL", fallback(cfg.FrontendURL, "http://localhost:3000"))

	if raw := getEnv("ALLOWED_ORIGINS", ""); raw != "" {
		cfg.AllowedOrigins = splitOrigins(raw)
	} else if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = splitOrigins(DefaultAllowedOrigins)
	}

	cfg.IdentityURL = getEnv("IDENTITY_URL", cfg.IdentityURL)
	cfg.IdentityClientID = getEnv("IDENTITY_CLIENT_ID", cfg.IdentityClientID)
	cfg.IdentityClientSecret = getEnv("IDENTITY_CLIENT_SECRET", cfg.IdentityClientSecret)

	cfg.RedisURL = getEnv("REDIS_URL", fallback(cfg.RedisURL, "redis://localhost:6379/0"))
	cfg.RateLimitRate = getEnv("RATE_LIMIT_RATE", cfg.RateLimitRate)

	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQPrefetch = getEnvInt("RABBITMQ_PREFETCH", fallbackInt(cfg.RabbitMQPrefetch, 10))

	cfg.EnableHSTS = getEnvBool("ENABLE_HSTS", cfg.EnableHSTS)
	cfg.ServerDebugMode = getEnvBool("SERVER_DEBUG_MODE", cfg.ServerDebugMode)
	cfg.WorkerDebugMode = getEnvBool("WORKER_DEBUG_MODE", cfg.WorkerDebugMode)

	cfg.OTELEnabled = getEnvBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IdentityURL == "" {
		return nil, fmt.Errorf("IDENTITY_URL is required")
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// splitOrigins parses a comma-separated origin list. Entries are trimmed but
// otherwise untouched; the allow-list matches origins byte for byte.
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func fallback(value, def string) string {
	if value != "" {
		return value
	}
	return def
}

func fallbackInt(value, def int) int {
	if value != 0 {
		return value
	}
	return def
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
