package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:5000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 15 || cfg.API.RatePerSecond != 5 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("api:\n  base_url: https://members.example.com\n  timeout_seconds: 30\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.API.BaseURL != "https://members.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", cfg.API.TimeoutSeconds)
	}
	// Unset keys keep their defaults.
	if cfg.API.RatePerSecond != 5 {
		t.Errorf("RatePerSecond = %d, want default", cfg.API.RatePerSecond)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("AFFINITY_API_URL", "https://override.example.com")
	t.Setenv("AFFINITY_API_TIMEOUT", "60")
	t.Setenv("AFFINITY_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.API.BaseURL != "https://override.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d", cfg.API.TimeoutSeconds)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestLoadFrom_InvalidTimeoutEnvIgnored(t *testing.T) {
	t.Setenv("AFFINITY_API_TIMEOUT", "not-a-number")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.API.TimeoutSeconds != 15 {
		t.Errorf("TimeoutSeconds = %d, want default", cfg.API.TimeoutSeconds)
	}
}

func TestLoadFrom_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: ["), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() error = nil for malformed yaml")
	}
}

func TestLoadFrom_EmptyBaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api:\n  base_url: \"\"\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() error = nil for empty base URL")
	}
}
