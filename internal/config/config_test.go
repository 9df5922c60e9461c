package config

import (
	"errors"
	"testing"
)

var configKeys = []string{
	"APP_ENV", "APP_HTTP_ADDR", "METRICS_ADDR", "DB_DSN", "STORE_TYPE", "ENV",
	"ADMIN_API_KEY", "RATE_LIMIT_PER_IP", "LOG_LEVEL", "RULES_FILE", "TIMEZONE", "CRYPTO_WORKERS", "PRIVATE_KEY_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppEnv != "dev" || cfg.HTTPAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Fatalf("Load() addresses = %+v", cfg)
	}
	if cfg.StoreType != "memory" || cfg.Env != "prod" || cfg.LogLevel != "info" {
		t.Fatalf("Load() store/env/log = %+v", cfg)
	}
	if cfg.RateLimitPerIP != 100 || cfg.CryptoWorkers != 4 || cfg.Timezone != "America/Chicago" {
		t.Fatalf("Load() limits = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults error = %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("CRYPTO_WORKERS", "8")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("RULES_FILE", "/etc/health/rules.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreType != "postgres" || cfg.CryptoWorkers != 8 || cfg.Timezone != "UTC" || cfg.RulesFile != "/etc/health/rules.json" {
		t.Fatalf("Load() = %+v", cfg)
	}
}

func validConfig() Config {
	return Config{
		AppEnv:         "dev",
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		StoreType:      "memory",
		Env:            "prod",
		AdminAPIKey:    defaultAdminKey,
		RateLimitPerIP: 100,
		Timezone:       "UTC",
		CryptoWorkers:  4,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad store", mutate: func(c *Config) { c.StoreType = "redis" }, wantField: "STORE_TYPE"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreType = "postgres" }, wantField: "DB_DSN"},
		{name: "no http addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantField: "APP_HTTP_ADDR"},
		{name: "no metrics addr", mutate: func(c *Config) { c.MetricsAddr = "" }, wantField: "METRICS_ADDR"},
		{name: "no env", mutate: func(c *Config) { c.Env = "" }, wantField: "ENV"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimitPerIP = 0 }, wantField: "RATE_LIMIT_PER_IP"},
		{name: "zero workers", mutate: func(c *Config) { c.CryptoWorkers = 0 }, wantField: "CRYPTO_WORKERS"},
		{name: "bad zone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantField: "TIMEZONE"},
		{name: "default key in prod", mutate: func(c *Config) { c.AppEnv = "prod" }, wantField: "ADMIN_API_KEY"},
		{name: "custom key in prod", mutate: func(c *Config) { c.AppEnv = "production"; c.AdminAPIKey = "s3cret" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var ve ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Fatalf("Validate() error = %v, want field %s", err, tt.wantField)
			}
		})
	}
}
