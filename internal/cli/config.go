// Package cli holds the configuration and output helpers of the healthstatus command.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "HEALTHSTATUS_CONFIG"
	EnvBaseURL    = "HEALTHSTATUS_BASE_URL"
	EnvAPIKey     = "HEALTHSTATUS_API_KEY"
)

// ErrConfigExists is returned by InitConfig when a config file is already present.
var ErrConfigExists = errors.New("config file already exists")

// Config represents the CLI configuration
type Config struct {
	DefaultEnv   string               `yaml:"default_env"`
	Environments map[string]EnvConfig `yaml:"environments"`
}

// EnvConfig is the server connection of one environment.
type EnvConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// GetConfigPath returns $HEALTHSTATUS_CONFIG or ~/.healthstatus/config.yaml.
func GetConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".healthstatus", "config.yaml"), nil
}

// LoadConfig reads the config file. A missing file yields an empty config
// whose default environment is "prod".
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{DefaultEnv: "prod", Environments: map[string]EnvConfig{}}
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if cfg.Environments == nil {
		cfg.Environments = map[string]EnvConfig{}
	}
	return cfg, nil
}

// SaveConfig writes cfg with owner-only permissions.
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveEnv returns the connection settings of envName (the default
// environment when empty). Flags win over environment variables, which win
// over the config file. The API key is only required when needKey is set.
func ResolveEnv(envName, baseURLFlag, apiKeyFlag string, needKey bool) (EnvConfig, string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return EnvConfig{}, "", err
	}
	if envName == "" {
		envName = cfg.DefaultEnv
	}

	ec := cfg.Environments[envName]
	ec.BaseURL = firstNonEmpty(baseURLFlag, os.Getenv(EnvBaseURL), ec.BaseURL)
	ec.APIKey = firstNonEmpty(apiKeyFlag, os.Getenv(EnvAPIKey), ec.APIKey)

	if ec.BaseURL == "" {
		return EnvConfig{}, "", fmt.Errorf("no base_url configured for environment %q", envName)
	}
	if needKey && ec.APIKey == "" {
		return EnvConfig{}, "", fmt.Errorf("no api_key configured for environment %q", envName)
	}
	return ec, envName, nil
}

// InitConfig writes a starter config file unless one exists and force is unset.
func InitConfig(force bool) (string, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(configPath); err == nil && !force {
		return configPath, fmt.Errorf("%w: %s", ErrConfigExists, configPath)
	}
	cfg := &Config{
		DefaultEnv: "dev",
		Environments: map[string]EnvConfig{
			"dev":  {BaseURL: "http://localhost:8080"},
			"prod": {BaseURL: "https://status.example.com"},
		},
	}
	return configPath, SaveConfig(cfg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
