// Package config loads client configuration from ~/.affinity/config.yaml
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the client.
type Config struct {
	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`
}

// APIConfig holds membership API settings.
type APIConfig struct {
	// BaseURL is the platform API base URL.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds each individual API request.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RatePerSecond caps outgoing request rate.
	RatePerSecond int `yaml:"rate_per_second"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 15,
			RatePerSecond:  5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Dir returns the path to ~/.affinity.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".affinity"), nil
}

// EnsureDir creates ~/.affinity and its subdirectories if missing.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"session",
		"logs",
	}
	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return dir, nil
}

// Load reads the config file (when present) over the defaults, then applies
// environment overrides.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads configuration from an explicit file path. A missing file
// is not an error; defaults apply.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.API.BaseURL = getEnv("AFFINITY_API_URL", cfg.API.BaseURL)
	cfg.API.TimeoutSeconds = getEnvInt("AFFINITY_API_TIMEOUT", cfg.API.TimeoutSeconds)
	cfg.Log.Level = getEnv("AFFINITY_LOG_LEVEL", cfg.Log.Level)

	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url must be set")
	}
	return cfg, nil
}

// Save writes the configuration to ~/.affinity/config.yaml.
func (c *Config) Save() error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
