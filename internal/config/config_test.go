package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/authgw")
	t.Setenv("IDENTITY_URL", "https://id.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	want := []string{"http://localhost:3000", "https://app.lacs.cc"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.RabbitMQPrefetch != 10 {
		t.Errorf("RabbitMQPrefetch = %d, want 10", cfg.RabbitMQPrefetch)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("IDENTITY_URL", "https://id.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without DATABASE_URL")
	}
}

func TestLoadRequiresIdentityURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/authgw")
	t.Setenv("IDENTITY_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without IDENTITY_URL")
	}
}

func TestLoadParsesAllowedOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com , https://b.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte(`
database_url: postgres://file/authgw
identity_url: https://id.file.example.com
server_port: "9090"
allowed_origins:
  - https://file.example.com
rate_limit_rate: 10-M
`)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DatabaseURL != "postgres://file/authgw" {
		t.Errorf("DatabaseURL = %q, want file value", cfg.DatabaseURL)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, environment must override the file", cfg.ServerPort)
	}
	if cfg.RateLimitRate != "10-M" {
		t.Errorf("RateLimitRate = %q, want 10-M", cfg.RateLimitRate)
	}
	want := []string{"https://file.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}
